package hardware

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Supported external clock (INCK) frequencies.
const (
	XClk37M = 37125 * physic.KiloHertz
	XClk74M = 74250 * physic.KiloHertz
)

// Clock is the sensor's external clock input.
type Clock interface {
	// Enable starts the clock at freq.
	Enable(freq physic.Frequency) error
	// Disable stops the clock. It has no failure path.
	Disable()
}

// Supply is the bulk set of sensor power rails (VDDA, VDDD, VDDDO).
type Supply interface {
	// Enable turns on every rail, or none of them.
	Enable() error
	// Disable turns off every rail. It has no failure path.
	Disable()
}

// FixedClock models a free-running oscillator soldered to INCK, with no
// enable control. Enable only checks that the requested rate matches.
type FixedClock struct {
	Rate physic.Frequency
}

func (c FixedClock) Enable(freq physic.Frequency) error {
	if freq != c.Rate {
		return fmt.Errorf("clock: fixed oscillator runs at %s, requested %s", c.Rate, freq)
	}
	return nil
}

func (c FixedClock) Disable() {}

// GPIOClock is an oscillator of fixed rate gated by an enable pin.
type GPIOClock struct {
	Pin  gpio.PinOut
	Rate physic.Frequency
}

func (c *GPIOClock) Enable(freq physic.Frequency) error {
	if freq != c.Rate {
		return fmt.Errorf("clock: oscillator runs at %s, requested %s", c.Rate, freq)
	}
	if err := c.Pin.Out(gpio.High); err != nil {
		return fmt.Errorf("clock: enable %s: %w", c.Pin, err)
	}
	return nil
}

func (c *GPIOClock) Disable() {
	if err := c.Pin.Out(gpio.Low); err != nil {
		slog.Warn("clock: disable failed", "pin", c.Pin.String(), "err", err)
	}
}

// GPIOSupply drives one enable pin per power rail. Rails are enabled in
// order and disabled in reverse order. An empty GPIOSupply is a no-op,
// for boards with always-on rails.
type GPIOSupply struct {
	Pins []gpio.PinOut
}

func (s *GPIOSupply) Enable() error {
	for i, p := range s.Pins {
		if err := p.Out(gpio.High); err != nil {
			// Release the rails already on, like regulator_bulk_enable.
			for j := i - 1; j >= 0; j-- {
				_ = s.Pins[j].Out(gpio.Low)
			}
			return fmt.Errorf("supply: enable %s: %w", p, err)
		}
	}
	return nil
}

func (s *GPIOSupply) Disable() {
	for i := len(s.Pins) - 1; i >= 0; i-- {
		if err := s.Pins[i].Out(gpio.Low); err != nil {
			slog.Warn("supply: disable failed", "pin", s.Pins[i].String(), "err", err)
		}
	}
}

// PowerPins names the GPIO lines wired to the sensor. Empty names mean the
// line is not wired.
type PowerPins struct {
	Reset       string   // XCLR (active low: High releases the sensor)
	ClockEnable string   // oscillator enable
	Supplies    []string // VDDA, VDDD, VDDDO enables, in power-up order
}

// OpenPower resolves the named GPIO lines through periph.io and returns the
// clock, supply and reset line for a session. A nil reset line means XCLR
// is tied high on the board.
func OpenPower(pins PowerPins, xclk physic.Frequency) (Clock, Supply, gpio.PinOut, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, nil, fmt.Errorf("gpio: host init failed: %w", err)
	}

	var clk Clock = FixedClock{Rate: xclk}
	if pins.ClockEnable != "" {
		p := gpioreg.ByName(pins.ClockEnable)
		if p == nil {
			return nil, nil, nil, fmt.Errorf("gpio: failed to open %s (clock enable)", pins.ClockEnable)
		}
		clk = &GPIOClock{Pin: p, Rate: xclk}
	}

	supply := &GPIOSupply{}
	for _, name := range pins.Supplies {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, nil, nil, fmt.Errorf("gpio: failed to open %s (supply)", name)
		}
		supply.Pins = append(supply.Pins, p)
	}

	var reset gpio.PinOut
	if pins.Reset != "" {
		p := gpioreg.ByName(pins.Reset)
		if p == nil {
			return nil, nil, nil, fmt.Errorf("gpio: failed to open %s (XCLR)", pins.Reset)
		}
		// Hold the sensor in reset until power-on.
		if err := p.Out(gpio.Low); err != nil {
			return nil, nil, nil, fmt.Errorf("gpio: failed to drive XCLR: %w", err)
		}
		reset = p
	}

	slog.Debug("gpio: sensor power lines ready",
		"reset", pins.Reset,
		"clock_enable", pins.ClockEnable,
		"supplies", pins.Supplies)
	return clk, supply, reset, nil
}
