package validate

import (
	"github.com/go-playground/validator/v10"
)

const maxIndexNameLen = 128

// validateIndexName checks the search service index naming rules: lowercase
// letters, digits or dashes, starting with a letter or digit, no "--".
func validateIndexName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 2 || len(s) > maxIndexNameLen {
		return false
	}

	if s[len(s)-1] == '-' {
		return false
	}

	prev := byte(0)
	for i := range len(s) {
		c := s[i]

		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' && i > 0 && prev != '-':
		default:
			return false
		}

		prev = c
	}

	return true
}

// validateFieldName checks that a field name starts with a letter and holds
// only letters, digits and underscores.
func validateFieldName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}

	for i := range len(s) {
		c := s[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'

		if i == 0 && !isAlpha {
			return false
		}

		if !isAlpha && !isDigit && c != '_' {
			return false
		}
	}

	return true
}
