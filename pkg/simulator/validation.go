package simulator

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/process"
)

// rootID is what a fresh table allocates to its root
const rootID = 1

// ValidateStopKey requires exactly one printable character
func ValidateStopKey(key string) error {
	if utf8.RuneCountInString(key) != 1 {
		return errors.NewValidationError("stop key must be a single character", nil).
			WithContext("stop_key", key)
	}

	r, _ := utf8.DecodeRuneInString(key)
	if !unicode.IsPrint(r) || unicode.IsSpace(r) {
		return errors.NewValidationError("stop key must be a printable character", nil).
			WithContext("stop_key", fmt.Sprintf("%q", key))
	}

	return nil
}

// ValidateRunDuration allows zero, meaning no limit
func ValidateRunDuration(duration time.Duration) error {
	if duration < 0 {
		return errors.NewValidationError("run duration cannot be negative", nil).
			WithContext("run_duration", duration.String())
	}
	return nil
}

// ValidatePriorityName checks a priority as written in configuration
func ValidatePriorityName(priority string) error {
	_, err := process.ParsePriority(priority)
	return err
}
