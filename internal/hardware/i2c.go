package hardware

import (
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAddr is the IMX415's 7-bit I2C address.
const DefaultAddr uint16 = 0x1A

// maxOpsPerSec bounds the register transaction rate on a shared bus.
const maxOpsPerSec = 2000

// OpenI2C opens the named I2C bus ("" selects the first available bus) and
// returns a rate-limited register port bound to the sensor at addr, along
// with the bus closer. opts are appended after the default rate limit.
func OpenI2C(busName string, addr uint16, opts ...PortOption) (*Port, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("i2c: host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c: open bus %q: %w", busName, err)
	}
	dev := &i2c.Dev{Bus: bus, Addr: addr}
	slog.Info("i2c: sensor bound", "bus", bus.String(), "addr", fmt.Sprintf("0x%02x", addr))

	all := append([]PortOption{WithRateLimit(maxOpsPerSec)}, opts...)
	return NewPort(dev, all...), bus, nil
}

func hexReg(reg Register) string {
	return fmt.Sprintf("0x%04x", reg)
}
