package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

// validationFailure turns ozzo's per-field errors into a ValidationFailure
// whose message names the first offending field.
func validationFailure(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(err.Error(), nil)
	}

	fields := make(map[string]string, len(verrs))
	keys := make([]string, 0, len(verrs))
	for k, v := range verrs {
		if v == nil {
			continue
		}
		fields[k] = v.Error()
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := "validation error"
	if len(keys) > 0 {
		msg = keys[0] + ": " + fields[keys[0]]
	}
	return apperrors.Validation(msg, fields)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
