package screenshot

import "strings"

// Device is a viewport class.
type Device string

const (
	Desktop Device = "desktop"
	Tablet  Device = "tablet"
	Mobile  Device = "mobile"
)

// ParseDevice maps a query value to a Device. Empty and unknown values
// map to Desktop.
func ParseDevice(s string) Device {
	switch Device(strings.ToLower(strings.TrimSpace(s))) {
	case Mobile:
		return Mobile
	case Tablet:
		return Tablet
	default:
		return Desktop
	}
}

// Viewport is a capture size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

var fixedViewports = map[Device]Viewport{
	Mobile: {Width: 375, Height: 667},
	Tablet: {Width: 768, Height: 1024},
}

// Viewport returns the size used for d. Desktop uses the configured size.
func (c Config) Viewport(d Device) Viewport {
	if v, ok := fixedViewports[d]; ok {
		return v
	}
	return Viewport{Width: c.Width, Height: c.Height}
}
