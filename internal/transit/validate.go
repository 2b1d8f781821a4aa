package transit

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the "hhmm" tag registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks field constraints on every stop and route.
func (n *Network) Validate() error {
	if err := Validator().Struct(n); err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}
	return nil
}

// ParseClock parses an "HH:MM" schedule time into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock renders an offset from midnight as "HH:MM", wrapping at 24h.
func FormatClock(d time.Duration) string {
	mins := int(d/time.Minute) % (24 * 60)
	if mins < 0 {
		mins += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
