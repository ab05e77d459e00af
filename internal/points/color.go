package points

import (
	"encoding/hex"
	"fmt"
)

// Color is an RGBA calibration-marker color, compared for equality (not
// closeness) between observed markers and named points.
type Color struct {
	R, G, B, A uint8
}

// Black is the default color for points read without an explicit color.
var Black = Color{A: 0xff}

// ParseColor accepts "#RRGGBB" (opaque) or "#AARRGGBB" hex color strings.
func ParseColor(s string) (Color, error) {
	if len(s) == 0 || s[0] != '#' {
		return Color{}, fmt.Errorf("points: color %q must start with '#'", s)
	}
	body := s[1:]
	switch len(body) {
	case 6:
		b, err := hex.DecodeString(body)
		if err != nil {
			return Color{}, fmt.Errorf("points: invalid color %q: %w", s, err)
		}
		return Color{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
	case 8:
		b, err := hex.DecodeString(body)
		if err != nil {
			return Color{}, fmt.Errorf("points: invalid color %q: %w", s, err)
		}
		return Color{A: b[0], R: b[1], G: b[2], B: b[3]}, nil
	default:
		return Color{}, fmt.Errorf("points: color %q must be #RRGGBB or #AARRGGBB", s)
	}
}

// String renders c as "#AARRGGBB".
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.A, c.R, c.G, c.B)
}

// Eq reports exact color equality.
func (c Color) Eq(o Color) bool {
	return c == o
}
