package sim

import (
	"fmt"
	"regexp"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

var namePattern = regexp.MustCompile(
	`^[A-Za-z0-9_]+(\[[0-9]+\])?(\.[A-Za-z0-9_]+(\[[0-9]+\])?)*$`)

// NameMustBeValid panics if the name is not an acceptable element name.
// Names are dot-separated tokens, where each token may carry a numeric
// index suffix (e.g., "Source.Tcdm[3]").
func NameMustBeValid(name string) {
	if !namePattern.MatchString(name) {
		panic(fmt.Sprintf("invalid name %q", name))
	}
}
