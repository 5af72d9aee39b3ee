package tsl2561

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztkent/lux-meter/tsl2561/tsl2561test"
)

var errBus = errors.New("i2c: remote I/O error")

func newTestSensor(t *testing.T, model Model) (*TSL2561, *tsl2561test.FakeBus, *[]time.Duration) {
	t.Helper()
	bus := tsl2561test.NewFakeBus()
	tsl, err := NewWithBus(bus, TSL2561_ADDR, model)
	require.NoError(t, err)

	var waits []time.Duration
	tsl.sleep = func(d time.Duration) { waits = append(waits, d) }
	bus.Reset()
	return tsl, bus, &waits
}

func TestNewWithBus(t *testing.T) {
	bus := tsl2561test.NewFakeBus()
	tsl, err := NewWithBus(bus, TSL2561_ADDR, TSL2561_PACKAGE_T)
	require.NoError(t, err)

	assert.Equal(t, TSL2561_GAIN_1X, tsl.Gain())
	assert.Equal(t, TSL2561_INTEGRATIONTIME_13MS, tsl.IntegrationTime())
	assert.False(t, tsl.Active())
	assert.False(t, bus.Powered())
	assert.Equal(t, byte(0x00), bus.Timing())

	txs := bus.Transactions()
	require.Len(t, txs, 4)
	assert.Equal(t, tsl2561test.Tx{Reg: 0x8A, Data: []byte{0x0A}}, txs[0])
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x80, Data: []byte{0x03}}, txs[1])
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x81, Data: []byte{0x00}, Powered: true}, txs[2])
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x80, Data: []byte{0x00}, Powered: true}, txs[3])
}

func TestNewWithBusBadID(t *testing.T) {
	// 0x8A and 0x1A share the low nibble with a valid ID
	for _, id := range []byte{0x00, 0x0B, 0x1A, 0x8A, 0x50, 0xFF} {
		bus := tsl2561test.NewFakeBus()
		bus.SetID(id)
		_, err := NewWithBus(bus, TSL2561_ADDR, TSL2561_PACKAGE_T)
		assert.ErrorIs(t, err, ErrInvalidDevice, "id 0x%02x", id)
		assert.False(t, bus.Powered())
	}
}

func TestNewWithBusTransportFailure(t *testing.T) {
	bus := tsl2561test.NewFakeBus()
	bus.ReadHook = func(reg byte) error { return errBus }
	_, err := NewWithBus(bus, TSL2561_ADDR, TSL2561_PACKAGE_T)
	assert.ErrorIs(t, err, errBus)
	assert.NotErrorIs(t, err, ErrInvalidDevice)
}

func TestSensorID(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	id, err := tsl.SensorID()
	require.NoError(t, err)
	assert.Equal(t, TSL2561_DEVICE_ID, id)
	assert.Equal(t, byte(0x8A), bus.Transactions()[0].Reg)
}

func TestValidConfigurations(t *testing.T) {
	for _, gain := range []int{TSL2561_GAIN_1X, TSL2561_GAIN_16X} {
		for _, ms := range []int{TSL2561_INTEGRATIONTIME_13MS, TSL2561_INTEGRATIONTIME_101MS, TSL2561_INTEGRATIONTIME_402MS} {
			tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
			require.NoError(t, tsl.SetGain(gain))
			require.NoError(t, tsl.SetIntegrationTime(ms))

			expected := integrationProfiles[ms].Code
			if gain == 16 {
				expected |= 0x10
			}
			assert.Equal(t, expected, bus.Timing(), "gain %d, %dms", gain, ms)

			bus.SetChannels(10, 5)
			reading, err := tsl.Read(false, true)
			require.NoError(t, err)
			assert.Equal(t, gain, reading.Gain)
			assert.Equal(t, ms, reading.IntegrationTime)
			assert.Equal(t, []time.Duration{integrationProfiles[ms].Wait}, *waits)
			assert.False(t, tsl.Active())
		}
	}
}

func TestInvalidConfigurations(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	require.NoError(t, tsl.SetGain(16))
	require.NoError(t, tsl.SetIntegrationTime(101))
	bus.Reset()

	for _, gain := range []int{-1, 0, 2, 4, 15, 25, 428} {
		assert.ErrorIs(t, tsl.SetGain(gain), ErrInvalidArgument)
	}
	for _, ms := range []int{-13, 0, 14, 100, 200, 400, 403} {
		assert.ErrorIs(t, tsl.SetIntegrationTime(ms), ErrInvalidArgument)
	}
	assert.Equal(t, 16, tsl.Gain())
	assert.Equal(t, 101, tsl.IntegrationTime())
	assert.Empty(t, bus.Transactions())
}

func TestSetGainTransportFailure(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	bus.WriteHook = func(reg byte, data []byte) error {
		if reg == TSL2561_REGISTER_TIMING {
			return errBus
		}
		return nil
	}
	err := tsl.SetGain(16)
	assert.ErrorIs(t, err, errBus)
	assert.Equal(t, 1, tsl.Gain())
	assert.False(t, tsl.Active())
	assert.False(t, bus.Powered())
}

func TestReadRawSequence(t *testing.T) {
	tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
	bus.SetChannels(0x1234, 0x0102)

	broadband, ir, err := tsl.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), broadband)
	assert.Equal(t, uint16(0x0102), ir)
	assert.Equal(t, []time.Duration{15 * time.Millisecond}, *waits)

	txs := bus.Transactions()
	require.Len(t, txs, 4)
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x80, Data: []byte{0x03}}, txs[0])
	assert.Equal(t, tsl2561test.Tx{Reg: 0xAC, Data: []byte{0x34, 0x12}, Powered: true}, txs[1])
	assert.Equal(t, tsl2561test.Tx{Reg: 0xAE, Data: []byte{0x02, 0x01}, Powered: true}, txs[2])
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x80, Data: []byte{0x00}, Powered: true}, txs[3])
}

func TestReadLeavesSensorInactiveOnError(t *testing.T) {
	for _, failing := range []byte{TSL2561_REGISTER_CHANNEL0, TSL2561_REGISTER_CHANNEL1} {
		tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
		bus.ReadHook = func(reg byte) error {
			if reg == failing {
				return errBus
			}
			return nil
		}
		_, err := tsl.Read(true, false)
		assert.ErrorIs(t, err, errBus)
		assert.False(t, tsl.Active())
		assert.False(t, bus.Powered())
	}
}

func TestPowerOnFailure(t *testing.T) {
	tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
	bus.WriteHook = func(reg byte, data []byte) error {
		if reg == TSL2561_REGISTER_CONTROL && data[0] == TSL2561_CONTROL_POWERON {
			return errBus
		}
		return nil
	}
	_, _, err := tsl.ReadRaw()
	assert.ErrorIs(t, err, errBus)
	assert.Empty(t, *waits)
	assert.False(t, tsl.Active())

	txs := bus.Transactions()
	assert.Equal(t, tsl2561test.Tx{Write: true, Reg: 0x80, Data: []byte{0x00}}, txs[len(txs)-1])
}

func TestPowerOffFailure(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	errOff := errors.New("power off failed")
	bus.WriteHook = func(reg byte, data []byte) error {
		if reg == TSL2561_REGISTER_CONTROL && data[0] == TSL2561_CONTROL_POWEROFF {
			return errOff
		}
		return nil
	}
	bus.ReadHook = func(reg byte) error {
		if reg == TSL2561_REGISTER_CHANNEL1 {
			return errBus
		}
		return nil
	}
	_, _, err := tsl.ReadRaw()
	assert.ErrorIs(t, err, errBus)
	assert.ErrorIs(t, err, errOff)
}

func TestSetActive(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	require.NoError(t, tsl.SetActive(true))
	assert.True(t, tsl.Active())
	assert.True(t, bus.Powered())
	require.NoError(t, tsl.SetActive(false))
	assert.False(t, tsl.Active())
	assert.False(t, bus.Powered())

	bus.WriteHook = func(reg byte, data []byte) error { return errBus }
	assert.ErrorIs(t, tsl.SetActive(true), errBus)
	assert.False(t, tsl.Active())
}

func TestAutogainSwitchesToHighGain(t *testing.T) {
	tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
	bus.QueueChannels([2]uint16{50, 10}, [2]uint16{800, 100})

	reading, err := tsl.Read(true, true)
	require.NoError(t, err)
	assert.True(t, reading.GainChanged)
	assert.Equal(t, 16, reading.Gain)
	assert.Equal(t, 16, tsl.Gain())
	assert.Equal(t, uint16(800), reading.Broadband)
	assert.Equal(t, uint16(100), reading.Infrared)
	assert.Equal(t, byte(0x10), bus.Timing())
	assert.Len(t, *waits, 2)
	assert.False(t, tsl.Active())
}

func TestAutogainSwitchesToLowGain(t *testing.T) {
	tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
	require.NoError(t, tsl.SetGain(16))
	bus.QueueChannels([2]uint16{5000, 100}, [2]uint16{300, 50})

	reading, err := tsl.Read(true, false)
	require.NoError(t, err)
	assert.True(t, reading.GainChanged)
	assert.Equal(t, 1, reading.Gain)
	assert.Equal(t, uint16(300), reading.Broadband)
	assert.Equal(t, byte(0x00), bus.Timing())
	assert.Len(t, *waits, 2)

	expected, err := CalculateLux(300, 50, integrationProfiles[13], 1, standardLuxScale)
	require.NoError(t, err)
	assert.Equal(t, expected, reading.Lux)
}

func TestAutogainKeepsGainInRange(t *testing.T) {
	tsl, bus, waits := newTestSensor(t, TSL2561_PACKAGE_T)
	bus.SetChannels(100, 10) // exactly the low threshold
	reading, err := tsl.Read(true, true)
	require.NoError(t, err)
	assert.False(t, reading.GainChanged)
	assert.Equal(t, 1, reading.Gain)
	assert.Len(t, *waits, 1)

	// Without autogain a dark reading never changes gain
	bus.SetChannels(5, 1)
	reading, err = tsl.Read(false, true)
	require.NoError(t, err)
	assert.False(t, reading.GainChanged)
	assert.Equal(t, 1, tsl.Gain())
}

func TestReadSaturated(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	require.NoError(t, tsl.SetIntegrationTime(402))
	bus.SetChannels(65000, 10)

	reading, err := tsl.Read(false, false)
	assert.ErrorIs(t, err, ErrSaturated)
	assert.Equal(t, uint16(65000), reading.Broadband)
	assert.False(t, tsl.Active())

	reading, err = tsl.Read(false, true)
	require.NoError(t, err)
	assert.Equal(t, uint16(65000), reading.Broadband)
	assert.Equal(t, uint16(10), reading.Infrared)
}

func TestInactiveAfterEveryRead(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_CS)
	inputs := [][2]uint16{{0, 0}, {50, 10}, {4900, 4900}, {1000, 200}, {65535, 65535}, {20, 1}}
	for _, in := range inputs {
		for _, autogain := range []bool{false, true} {
			for _, raw := range []bool{false, true} {
				bus.SetChannels(in[0], in[1])
				tsl.Read(autogain, raw)
				assert.False(t, tsl.Active())
				assert.False(t, bus.Powered())
			}
		}
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)

	value := integrationProfiles[402].Code | TSL2561_GAIN_BIT
	require.NoError(t, tsl.writeRegister8(TSL2561_REGISTER_TIMING, value))
	got, err := tsl.readRegister8(TSL2561_REGISTER_TIMING)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	require.NoError(t, tsl.writeRegister16(TSL2561_REGISTER_CHANNEL0, 0xBEEF))
	word, err := tsl.readRegister16(TSL2561_REGISTER_CHANNEL0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), word)

	txs := bus.Transactions()
	require.Len(t, txs, 4)
	assert.Equal(t, byte(0x81), txs[0].Reg)
	assert.Equal(t, byte(0x81), txs[1].Reg)
	assert.Equal(t, byte(0xAC), txs[2].Reg)
	assert.Equal(t, []byte{0xEF, 0xBE}, txs[2].Data)
	assert.Equal(t, byte(0xAC), txs[3].Reg)
}

func TestClose(t *testing.T) {
	tsl, bus, _ := newTestSensor(t, TSL2561_PACKAGE_T)
	require.NoError(t, tsl.Close())
	assert.True(t, bus.Closed())
}

func TestParseModel(t *testing.T) {
	cases := map[string]Model{
		"":          TSL2561_PACKAGE_T,
		"t":         TSL2561_PACKAGE_T,
		"FN":        TSL2561_PACKAGE_FN,
		"tsl2561cl": TSL2561_PACKAGE_CL,
		" CS ":      TSL2561_PACKAGE_CS,
		"TSL2561CS": TSL2561_PACKAGE_CS,
	}
	for in, expected := range cases {
		m, err := ParseModel(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, m, in)
	}
	_, err := ParseModel("TSL2591")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
