package convert

import (
	"fmt"

	"ledbar/internal/render"
)

// BytesPerPixel is the wire size of one RGB pixel.
const BytesPerPixel = 3

// PackInto flattens a frame into dst, the raw byte stream expected by the
// strip driver: R, G, B per pixel in strip order, each channel scaled by
// brightness/255. dst must hold exactly f.Len()*3 bytes so a driver can
// reuse one transmit buffer.
//
// Packing rules:
//
//   - byte index of pixel i, channel c = i*3 + c (c: 0=R, 1=G, 2=B)
//   - brightness 255 passes channels through unchanged
//   - brightness 0 yields an all-zero buffer
func PackInto(dst []byte, f render.Frame, brightness uint8) error {
	if len(dst) != f.Len()*BytesPerPixel {
		return fmt.Errorf("convert: buffer is %d bytes, frame needs %d", len(dst), f.Len()*BytesPerPixel)
	}
	for i := 0; i < f.Len(); i++ {
		c := f.At(i)
		off := i * BytesPerPixel
		dst[off+0] = scale(c.R, brightness)
		dst[off+1] = scale(c.G, brightness)
		dst[off+2] = scale(c.B, brightness)
	}
	return nil
}

// scale applies brightness with rounding to nearest.
func scale(v, brightness uint8) byte {
	if brightness == 255 {
		return v
	}
	return byte((uint16(v)*uint16(brightness) + 127) / 255)
}
