package coro

import (
	"errors"
	"strings"
)

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// validateName allows [A-Za-z0-9._-]. Empty means unnamed.
func validateName(name string) error {
	if name == "" {
		return nil
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			return errors.New("contains whitespace")
		default:
			return errors.New("contains invalid char (allowed: [A-Za-z0-9._-])")
		}
	}
	return nil
}
