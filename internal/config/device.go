// Package config loads, saves and watches the sensor daemon configuration.
package config

import (
	"fmt"

	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"periph.io/x/conn/v3/physic"
)

// Device is the configuration of one IMX415 and its board wiring.
type Device struct {
	// Sensor
	Lanes         int   `json:"lanes" toml:"lanes"`
	XClkHz        int64 `json:"xclk_hz" toml:"xclk_hz"`
	LinkFreqIndex int   `json:"link_freq_index" toml:"link_freq_index"`

	// Bus
	Bus       string `json:"bus" toml:"bus"` // "" selects the first I2C bus
	Addr      uint16 `json:"addr" toml:"addr"`
	RateLimit int    `json:"rate_limit" toml:"rate_limit"` // register ops/s, 0 = unlimited

	// GPIO lines, by periph.io name. Empty means not wired.
	ResetPin       string   `json:"reset_pin" toml:"reset_pin"`
	ClockEnablePin string   `json:"clock_enable_pin" toml:"clock_enable_pin"`
	SupplyPins     []string `json:"supply_pins" toml:"supply_pins"`

	// Daemon
	HTTPAddr string `json:"http_addr" toml:"http_addr"`
	MDNSName string `json:"mdns_name" toml:"mdns_name"`

	// Controls applied after power-on, keyed by control name.
	Controls map[string]int64 `json:"controls,omitempty" toml:"controls,omitempty"`
}

// Defaults returns the configuration of a 4-lane module on a 37.125 MHz
// oscillator at the default address.
func Defaults() Device {
	return Device{
		Lanes:         4,
		XClkHz:        37125000,
		LinkFreqIndex: 0,
		Addr:          hardware.DefaultAddr,
		HTTPAddr:      ":8415",
		MDNSName:      "imx415",
	}
}

// XClk returns the external clock frequency.
func (d Device) XClk() physic.Frequency {
	return physic.Frequency(d.XClkHz) * physic.Hertz
}

// Sensor returns the session configuration.
func (d Device) Sensor() controller.Config {
	return controller.Config{
		Lanes:         d.Lanes,
		XClk:          d.XClk(),
		LinkFreqIndex: d.LinkFreqIndex,
	}
}

// Power returns the GPIO wiring.
func (d Device) Power() hardware.PowerPins {
	return hardware.PowerPins{
		Reset:       d.ResetPin,
		ClockEnable: d.ClockEnablePin,
		Supplies:    d.SupplyPins,
	}
}

// Validate rejects configurations the sensor or board cannot run.
func (d Device) Validate() error {
	if err := d.Sensor().Validate(); err != nil {
		return err
	}
	if d.Addr == 0 || d.Addr > 0x7F {
		return models.ErrConfig(fmt.Sprintf("invalid I2C address 0x%02x", d.Addr))
	}
	if d.RateLimit < 0 {
		return models.ErrConfig(fmt.Sprintf("invalid rate limit %d", d.RateLimit))
	}
	for name := range d.Controls {
		if !models.IsControlID(name) {
			return models.ErrConfig(fmt.Sprintf("unknown control %q", name))
		}
	}
	return nil
}
