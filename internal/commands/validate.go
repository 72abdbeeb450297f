package commands

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minNameLength = 3
	maxNameLength = 20
)

var clientNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// reservedNames may not be used for clients, compared case-insensitively.
var reservedNames = map[string]struct{}{
	"server":  {},
	"wg0":     {},
	"admin":   {},
	"root":    {},
	"default": {},
	"config":  {},
}

// ValidateClientName checks a requested client name and returns a
// user-facing reason when it is rejected.
func ValidateClientName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("the name cannot be empty")
	case len(name) < minNameLength:
		return fmt.Errorf("the name is too short (minimum %d characters)", minNameLength)
	case len(name) > maxNameLength:
		return fmt.Errorf("the name is too long (maximum %d characters)", maxNameLength)
	case !clientNamePattern.MatchString(name):
		return fmt.Errorf("the name may only contain latin letters, digits, '-' and '_'")
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return fmt.Errorf("the name %q is reserved", name)
	}
	return nil
}
