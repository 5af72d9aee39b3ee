package tsl2561

import (
	"fmt"

	"golang.org/x/exp/io/i2c"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus is a connection to a single device on an I2C bus. The register byte is
// sent as-is; callers are responsible for any command bits.
//
// *i2c.Device from golang.org/x/exp/io/i2c satisfies Bus.
type Bus interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
}

var _ Bus = (*i2c.Device)(nil)

// OpenDevfs opens the device at addr on a Linux /dev/i2c-N bus.
func OpenDevfs(path string, addr uint16) (*i2c.Device, error) {
	if path == "" {
		// i2c-1 is the default I2C bus for the Raspberry Pi
		path = "/dev/i2c-1"
	}
	device, err := i2c.Open(&i2c.Devfs{Dev: path}, int(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return device, nil
}

// PeriphBus adapts a periph.io I2C bus to Bus.
type PeriphBus struct {
	dev *periphi2c.Dev
	bus periphi2c.Bus
}

var _ Bus = (*PeriphBus)(nil)

func NewPeriphBus(bus periphi2c.Bus, addr uint16) *PeriphBus {
	return &PeriphBus{
		dev: &periphi2c.Dev{Addr: addr, Bus: bus},
		bus: bus,
	}
}

// OpenPeriph initializes the periph host drivers and opens the named bus.
// An empty name selects the first bus available.
func OpenPeriph(name string, addr uint16) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return NewPeriphBus(bus, addr), nil
}

func (p *PeriphBus) ReadReg(reg byte, buf []byte) error {
	return p.dev.Tx([]byte{reg}, buf)
}

func (p *PeriphBus) WriteReg(reg byte, buf []byte) error {
	return p.dev.Tx(append([]byte{reg}, buf...), nil)
}

// Close closes the underlying bus if it supports it.
func (p *PeriphBus) Close() error {
	if c, ok := p.bus.(periphi2c.BusCloser); ok {
		return c.Close()
	}
	return nil
}

func (p *PeriphBus) String() string {
	return p.dev.String()
}
