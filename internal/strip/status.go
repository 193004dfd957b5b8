package strip

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Indicator is a single on/off status light.
type Indicator interface {
	Set(on bool)
}

// NopIndicator is used when no status LED is configured.
type NopIndicator struct{}

// Set implements Indicator.
func (NopIndicator) Set(bool) {}

// GPIOIndicator drives a status LED on a GPIO pin.
type GPIOIndicator struct {
	pin gpio.PinOut
}

// NewGPIOIndicator resolves name (e.g. "GPIO17") through periph.io and
// switches the pin off.
func NewGPIOIndicator(name string) (*GPIOIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("strip: periph host init failed: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("strip: gpio %s not found", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("strip: gpio %s Out failed: %w", name, err)
	}
	return &GPIOIndicator{pin: p}, nil
}

// Set implements Indicator. Pin errors are ignored; the light is purely
// informational.
func (g *GPIOIndicator) Set(on bool) {
	if on {
		_ = g.pin.Out(gpio.High)
	} else {
		_ = g.pin.Out(gpio.Low)
	}
}
