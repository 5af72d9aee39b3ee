package tsl2561

import "encoding/binary"

// Each helper is exactly one bus transaction. Transport errors are returned unchanged.

func (tsl *TSL2561) readRegister8(reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := tsl.bus.ReadReg(TSL2561_COMMAND_BIT|reg, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (tsl *TSL2561) writeRegister8(reg byte, value byte) error {
	return tsl.bus.WriteReg(TSL2561_COMMAND_BIT|reg, []byte{value})
}

func (tsl *TSL2561) readRegister16(reg byte) (uint16, error) {
	buf := make([]byte, 2)
	if err := tsl.bus.ReadReg(TSL2561_COMMAND_BIT|TSL2561_WORD_BIT|reg, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (tsl *TSL2561) writeRegister16(reg byte, value uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return tsl.bus.WriteReg(TSL2561_COMMAND_BIT|TSL2561_WORD_BIT|reg, buf)
}
