package hardware_test

import (
	"errors"
	"testing"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// stuckPin is a GPIO whose output driver always fails.
type stuckPin struct {
	gpiotest.Pin
}

func (p *stuckPin) Out(l gpio.Level) error { return errors.New("gpio stuck") }

func TestFixedClockRate(t *testing.T) {
	c := hardware.FixedClock{Rate: hardware.XClk37M}
	if err := c.Enable(hardware.XClk37M); err != nil {
		t.Errorf("Enable at own rate: %v", err)
	}
	if err := c.Enable(hardware.XClk74M); err == nil {
		t.Error("Enable at foreign rate succeeded")
	}
}

func TestGPIOClock(t *testing.T) {
	pin := &gpiotest.Pin{N: "CLK_EN"}
	c := &hardware.GPIOClock{Pin: pin, Rate: hardware.XClk74M}
	if err := c.Enable(hardware.XClk74M); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if pin.Read() != gpio.High {
		t.Error("clock enable pin not driven high")
	}
	c.Disable()
	if pin.Read() != gpio.Low {
		t.Error("clock enable pin not driven low")
	}
}

func TestGPIOSupplyOrderAndRollback(t *testing.T) {
	vdda := &gpiotest.Pin{N: "VDDA"}
	vddd := &gpiotest.Pin{N: "VDDD"}
	bad := &stuckPin{Pin: gpiotest.Pin{N: "VDDDO"}}
	s := &hardware.GPIOSupply{Pins: []gpio.PinOut{vdda, vddd, bad}}

	if err := s.Enable(); err == nil {
		t.Fatal("Enable succeeded with a stuck rail")
	}
	if vdda.Read() != gpio.Low || vddd.Read() != gpio.Low {
		t.Error("rails enabled before the failure were not released")
	}

	ok := &hardware.GPIOSupply{Pins: []gpio.PinOut{vdda, vddd}}
	if err := ok.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if vdda.Read() != gpio.High || vddd.Read() != gpio.High {
		t.Error("rails not enabled")
	}
	ok.Disable()
	if vdda.Read() != gpio.Low || vddd.Read() != gpio.Low {
		t.Error("rails not disabled")
	}
}

func TestEmptySupplyIsNoop(t *testing.T) {
	s := &hardware.GPIOSupply{}
	if err := s.Enable(); err != nil {
		t.Errorf("Enable: %v", err)
	}
	s.Disable()
}
