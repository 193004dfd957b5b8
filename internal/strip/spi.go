package strip

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"ledbar/internal/convert"
	appLog "ledbar/internal/log"
	"ledbar/internal/render"
)

// SPIOptions configures the SPI-driven strip.
type SPIOptions struct {
	// Port is the periph.io SPI port name; "" opens the first available
	// port (/dev/spidev0.0 on a Raspberry Pi, data on MOSI / GPIO10).
	Port       string
	Pixels     int
	FreqKHz    int
	Brightness uint8
}

// SPI drives a WS2812-compatible strip by NRZ-encoding pixels on the SPI
// MOSI line.
type SPI struct {
	port       spi.PortCloser
	dev        *nrzled.Dev
	n          int
	brightness uint8
	buf        []byte
}

// NewSPI initializes periph.io, opens the SPI port and attaches the NRZ
// encoder.
func NewSPI(opts SPIOptions) (*SPI, error) {
	if opts.Pixels <= 0 {
		return nil, fmt.Errorf("strip: invalid pixel count %d", opts.Pixels)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("strip: periph host init failed: %w", err)
	}

	port, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("strip: failed to open SPI port %q: %w", opts.Port, err)
	}

	nrzOpts := nrzled.DefaultOpts
	nrzOpts.NumPixels = opts.Pixels
	nrzOpts.Channels = convert.BytesPerPixel
	if opts.FreqKHz > 0 {
		nrzOpts.Freq = physic.Frequency(opts.FreqKHz) * physic.KiloHertz
	}

	dev, err := nrzled.NewSPI(port, &nrzOpts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("strip: nrzled init failed: %w", err)
	}

	appLog.Info("strip ready", "port", opts.Port, "pixels", opts.Pixels, "freq", nrzOpts.Freq)
	return &SPI{
		port:       port,
		dev:        dev,
		n:          opts.Pixels,
		brightness: opts.Brightness,
		buf:        make([]byte, opts.Pixels*convert.BytesPerPixel),
	}, nil
}

// Write implements Device.
func (s *SPI) Write(f render.Frame) error {
	if f.Len() != s.n {
		return fmt.Errorf("strip: frame has %d pixels, strip has %d", f.Len(), s.n)
	}
	if err := convert.PackInto(s.buf, f, s.brightness); err != nil {
		return err
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("strip: spi write: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the SPI port.
func (s *SPI) Close() error {
	haltErr := s.dev.Halt()
	if err := s.port.Close(); err != nil {
		return err
	}
	return haltErr
}
