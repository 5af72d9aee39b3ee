// Package tsl2561test provides an in-memory TSL2561 for tests.
package tsl2561test

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	commandBit = 0x80
	wordBit    = 0x20

	regControl  = 0x00
	regTiming   = 0x01
	regID       = 0x0A
	regChannel0 = 0x0C
)

// Tx is one recorded bus transaction.
type Tx struct {
	Write   bool
	Reg     byte // as sent on the bus, including command bits
	Data    []byte
	Powered bool // CONTROL state when the transaction started
}

// FakeBus emulates the register file of a TSL2561. It implements tsl2561.Bus.
type FakeBus struct {
	// ReadHook and WriteHook, when set, may fail a transaction before it
	// touches the register file. reg has the command bits stripped.
	ReadHook  func(reg byte) error
	WriteHook func(reg byte, data []byte) error

	mu      sync.Mutex
	regs    [16]byte
	pending [][2]uint16
	log     []Tx
	closed  bool
}

// NewFakeBus returns a powered-off sensor reporting the expected ID.
func NewFakeBus() *FakeBus {
	f := &FakeBus{}
	f.regs[regID] = 0x0A
	return f
}

func (f *FakeBus) SetID(id byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[regID] = id
}

// SetChannels sets the counts returned until changed.
func (f *FakeBus) SetChannels(broadband, ir uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.setChannels(broadband, ir)
}

// QueueChannels queues counts, one pair per integration cycle. Each read of
// channel 0 consumes the next pair; once empty the last pair sticks.
func (f *FakeBus) QueueChannels(pairs ...[2]uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, pairs...)
}

func (f *FakeBus) setChannels(broadband, ir uint16) {
	binary.LittleEndian.PutUint16(f.regs[regChannel0:], broadband)
	binary.LittleEndian.PutUint16(f.regs[regChannel0+2:], ir)
}

func (f *FakeBus) ReadReg(reg byte, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, Tx{Reg: reg, Powered: f.powered()})

	addr := reg &^ (commandBit | wordBit)
	if f.ReadHook != nil {
		if err := f.ReadHook(addr); err != nil {
			return err
		}
	}
	if int(addr)+len(buf) > len(f.regs) {
		return fmt.Errorf("tsl2561test: read of %d bytes at 0x%02x out of range", len(buf), addr)
	}
	if addr == regChannel0 && len(f.pending) > 0 {
		f.setChannels(f.pending[0][0], f.pending[0][1])
		f.pending = f.pending[1:]
	}
	copy(buf, f.regs[addr:])
	f.log[len(f.log)-1].Data = append([]byte(nil), buf...)
	return nil
}

func (f *FakeBus) WriteReg(reg byte, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, Tx{Write: true, Reg: reg, Data: append([]byte(nil), buf...), Powered: f.powered()})

	addr := reg &^ (commandBit | wordBit)
	if f.WriteHook != nil {
		if err := f.WriteHook(addr, buf); err != nil {
			return err
		}
	}
	if int(addr)+len(buf) > len(f.regs) {
		return fmt.Errorf("tsl2561test: write of %d bytes at 0x%02x out of range", len(buf), addr)
	}
	copy(f.regs[addr:], buf)
	return nil
}

func (f *FakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeBus) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeBus) powered() bool {
	return f.regs[regControl]&0x03 == 0x03
}

// Powered reports whether the last CONTROL write powered the sensor on.
func (f *FakeBus) Powered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered()
}

// Timing returns the TIMING register contents.
func (f *FakeBus) Timing() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[regTiming]
}

// Register returns a register's contents, command bits ignored.
func (f *FakeBus) Register(reg byte) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[reg&^(commandBit|wordBit)]
}

// Transactions returns a copy of the recorded transactions.
func (f *FakeBus) Transactions() []Tx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Tx(nil), f.log...)
}

// Reset clears the transaction log.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = nil
}
