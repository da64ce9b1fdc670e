package ilp

import (
	"errors"
	"fmt"
	"strings"
)

// Address is a dot-delimited hierarchical ILP address such as
// "g.example.alice". Every address is also a valid routing prefix of itself.
type Address string

// Scheme identifies the allocation scheme an address belongs to (the first
// segment, e.g. "g" or "test").
type Scheme string

const (
	SchemeGlobal  Scheme = "g"
	SchemePrivate Scheme = "private"
	SchemeExample Scheme = "example"
	SchemePeer    Scheme = "peer"
	SchemeSelf    Scheme = "self"
	SchemeTest    Scheme = "test"
	SchemeLocal   Scheme = "local"
)

const maxAddressLength = 1023

// ErrInvalidAddress indicates a string that does not satisfy the ILP address
// grammar.
var ErrInvalidAddress = errors.New("ilp: invalid address")

var validSchemes = map[string]struct{}{
	"g": {}, "private": {}, "example": {}, "peer": {}, "self": {},
	"test": {}, "test1": {}, "test2": {}, "test3": {}, "local": {},
}

// ParseAddress validates raw against the address grammar and returns it as an
// Address.
func ParseAddress(raw string) (Address, error) {
	if raw == "" || len(raw) > maxAddressLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	segments := strings.Split(raw, ".")
	if _, ok := validSchemes[segments[0]]; !ok {
		return "", fmt.Errorf("%w: unknown scheme in %q", ErrInvalidAddress, raw)
	}
	for _, segment := range segments {
		if !validSegment(segment) {
			return "", fmt.Errorf("%w: bad segment in %q", ErrInvalidAddress, raw)
		}
	}
	return Address(raw), nil
}

// MustAddress is ParseAddress for addresses known valid at compile time. It
// panics on malformed input and is intended for constants and tests.
func MustAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

func validSegment(segment string) bool {
	if segment == "" {
		return false
	}
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '~' || c == '-':
		default:
			return false
		}
	}
	return true
}

// Scheme returns the allocation scheme of the address.
func (a Address) Scheme() Scheme {
	if idx := strings.IndexByte(string(a), '.'); idx >= 0 {
		return Scheme(a[:idx])
	}
	return Scheme(a)
}

// Segments splits the address into its dot-delimited segments.
func (a Address) Segments() []string {
	return strings.Split(string(a), ".")
}

// HasPrefix reports whether prefix covers the address on a whole-segment
// boundary. An address is always a prefix of itself.
func (a Address) HasPrefix(prefix Address) bool {
	if a == prefix {
		return true
	}
	return strings.HasPrefix(string(a), string(prefix)+".")
}

// Child returns the address extended by one segment.
func (a Address) Child(segment string) Address {
	return Address(string(a) + "." + segment)
}

func (a Address) String() string { return string(a) }
