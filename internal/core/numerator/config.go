// Package numerator provides domain contracts for check auto-numbering.
package numerator

import (
	"fmt"
	"strconv"
)

// Config identifies one numbering sequence and how its values are rendered.
type Config struct {
	// Key names the sequence row
	Key string

	// PadWidth is the minimum digit width; 0 disables padding
	PadWidth int
}

// CheckNumberConfig returns the single global check number sequence.
func CheckNumberConfig() Config {
	return Config{Key: "check_number"}
}

// Format renders a sequence value.
func (c Config) Format(n int64) string {
	if c.PadWidth > 0 {
		return fmt.Sprintf("%0*d", c.PadWidth, n)
	}
	return strconv.FormatInt(n, 10)
}
