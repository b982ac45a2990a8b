// color.go validates the hex colours used for service and staff calendar display.
package validation

import (
	"errors"
	"regexp"
)

// ErrInvalidColor is returned when a colour is not a #RGB or #RRGGBB hex value.
var ErrInvalidColor = errors.New("validation: invalid hex color")

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateHexColor checks that a colour is a #RGB or #RRGGBB hex value.
func ValidateHexColor(color string) error {
	if !hexColorPattern.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}
