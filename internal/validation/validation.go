// Package validation provides input validation for mock API requests.
package validation

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Validation error types for specific error handling.
var (
	ErrEmptyValue       = errors.New("value cannot be empty")
	ErrTooLong          = errors.New("value exceeds maximum length")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrReservedRange    = errors.New("cidr uses reserved address range")
	ErrInvalidPrefix    = errors.New("invalid prefix length")
	ErrIPv6NotSupported = errors.New("ipv6 not supported")
)

// Constraints for validation.
const (
	MaxNameLength        = 63
	MaxDescriptionLength = 512
	MinPrefixLength      = 8
	MaxPrefixLength      = 26
)

// Reserved IPv4 ranges that cannot back a VPC subnet.
// These are based on IANA special-purpose registries.
var reservedIPv4Ranges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),          // "This network" (RFC 791)
	netip.MustParsePrefix("127.0.0.0/8"),        // Loopback (RFC 1122)
	netip.MustParsePrefix("169.254.0.0/16"),     // Link-local (RFC 3927)
	netip.MustParsePrefix("224.0.0.0/4"),        // Multicast (RFC 5771)
	netip.MustParsePrefix("240.0.0.0/4"),        // Reserved for future use (RFC 1112)
	netip.MustParsePrefix("255.255.255.255/32"), // Broadcast
}

// namePattern matches resource names: a lowercase letter, then letters,
// digits and dashes, not ending in a dash.
var namePattern = regexp.MustCompile(`^[a-z]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// CIDRError provides detailed CIDR validation error information.
type CIDRError struct {
	CIDR   string
	Reason string
	Err    error
}

func (e *CIDRError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid cidr %q: %s", e.CIDR, e.Reason)
	}
	return fmt.Sprintf("invalid cidr %q: %v", e.CIDR, e.Err)
}

func (e *CIDRError) Unwrap() error {
	return e.Err
}

// NameError provides detailed name validation error information.
type NameError struct {
	Name   string
	Reason string
	Err    error
}

func (e *NameError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid name %q: %s", truncate(e.Name, 50), e.Reason)
	}
	return fmt.Sprintf("invalid name %q: %v", truncate(e.Name, 50), e.Err)
}

func (e *NameError) Unwrap() error {
	return e.Err
}

// KeyError provides detailed SSH public key validation error information.
type KeyError struct {
	Reason string
	Err    error
}

func (e *KeyError) Error() string {
	if e.Reason != "" {
		return "invalid public key: " + e.Reason
	}
	return fmt.Sprintf("invalid public key: %v", e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// ValidateIPv4Block validates a VPC subnet block.
// It checks for:
// - Valid CIDR format (a.b.c.d/x)
// - IPv4 only
// - Not in reserved ranges (loopback, multicast, etc.)
// - Prefix length between MinPrefixLength and MaxPrefixLength
func ValidateIPv4Block(cidr string) error {
	cidr = strings.TrimSpace(cidr)
	if cidr == "" {
		return &CIDRError{CIDR: cidr, Reason: "cannot be empty", Err: ErrEmptyValue}
	}

	if !strings.Contains(cidr, "/") {
		return &CIDRError{CIDR: cidr, Reason: "must be in a.b.c.d/x form", Err: ErrInvalidFormat}
	}

	pfx, err := netip.ParsePrefix(cidr)
	if err != nil {
		return &CIDRError{CIDR: cidr, Reason: "invalid cidr notation", Err: ErrInvalidFormat}
	}

	if !pfx.Addr().Is4() {
		return &CIDRError{CIDR: cidr, Reason: "only ipv4 is supported", Err: ErrIPv6NotSupported}
	}

	for _, reserved := range reservedIPv4Ranges {
		if pfx.Masked().Overlaps(reserved) {
			return &CIDRError{
				CIDR:   cidr,
				Reason: fmt.Sprintf("overlaps with reserved range %s", reserved),
				Err:    ErrReservedRange,
			}
		}
	}

	bits := pfx.Bits()
	if bits < MinPrefixLength {
		return &CIDRError{
			CIDR:   cidr,
			Reason: fmt.Sprintf("prefix length %d is too small (minimum is /%d)", bits, MinPrefixLength),
			Err:    ErrInvalidPrefix,
		}
	}
	if bits > MaxPrefixLength {
		return &CIDRError{
			CIDR:   cidr,
			Reason: fmt.Sprintf("prefix length %d is too large (maximum is /%d)", bits, MaxPrefixLength),
			Err:    ErrInvalidPrefix,
		}
	}

	return nil
}

// ValidateName validates a resource name. Names start with a lowercase
// letter, contain only letters, digits and dashes, cannot end with a dash,
// and are at most MaxNameLength characters.
func ValidateName(name string) error {
	if name == "" {
		return &NameError{Name: name, Reason: "cannot be empty", Err: ErrEmptyValue}
	}

	if len(name) > MaxNameLength {
		return &NameError{
			Name:   name,
			Reason: fmt.Sprintf("exceeds maximum length of %d characters", MaxNameLength),
			Err:    ErrTooLong,
		}
	}

	if !namePattern.MatchString(name) {
		return &NameError{
			Name:   name,
			Reason: "must start with a lowercase letter, contain only letters, digits, and dashes, and not end with a dash",
			Err:    ErrInvalidFormat,
		}
	}

	return nil
}

// ValidateDescription checks the length of a free-form description.
func ValidateDescription(desc string) error {
	if len(desc) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds maximum length of %d characters: %w", MaxDescriptionLength, ErrTooLong)
	}
	return nil
}

// ValidateSSHPublicKey checks that key is a single authorized_keys line.
func ValidateSSHPublicKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &KeyError{Reason: "cannot be empty", Err: ErrEmptyValue}
	}
	_, _, _, rest, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return &KeyError{Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
	}
	if len(strings.TrimSpace(string(rest))) > 0 {
		return &KeyError{Reason: "must contain exactly one key", Err: ErrInvalidFormat}
	}
	return nil
}

// truncate shortens a string for display in error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
