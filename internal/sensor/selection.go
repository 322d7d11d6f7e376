package sensor

import "fmt"

// Pixel array geometry.
const (
	NativeWidth      = 3864
	NativeHeight     = 2192
	PixelArrayLeft   = 0
	PixelArrayTop    = 0
	PixelArrayWidth  = 3864
	PixelArrayHeight = 2192
)

// SelectionTarget names a selection rectangle.
type SelectionTarget string

const (
	TargetNativeSize  SelectionTarget = "native_size"
	TargetCropDefault SelectionTarget = "crop_default"
	TargetCropBounds  SelectionTarget = "crop_bounds"
)

// Rect is a rectangle on the pixel array.
type Rect struct {
	Left   int32  `json:"left"`
	Top    int32  `json:"top"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// UnknownTargetError is returned by Selection for an unsupported target.
type UnknownTargetError struct {
	Target SelectionTarget
}

func (e UnknownTargetError) Error() string {
	return fmt.Sprintf("sensor: unknown selection target %q", string(e.Target))
}

// Selection returns the rectangle for target. The sensor does no cropping,
// so the crop default and bounds both cover the whole active array.
func Selection(target SelectionTarget) (Rect, error) {
	switch target {
	case TargetNativeSize:
		return Rect{Width: NativeWidth, Height: NativeHeight}, nil
	case TargetCropDefault, TargetCropBounds:
		return Rect{
			Left:   PixelArrayLeft,
			Top:    PixelArrayTop,
			Width:  PixelArrayWidth,
			Height: PixelArrayHeight,
		}, nil
	}
	return Rect{}, UnknownTargetError{Target: target}
}
