package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIPv4Block(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		wantErr error
	}{
		// Valid blocks
		{name: "valid /16", cidr: "10.0.0.0/16", wantErr: nil},
		{name: "valid /24", cidr: "192.168.1.0/24", wantErr: nil},
		{name: "valid /8", cidr: "10.0.0.0/8", wantErr: nil},
		{name: "valid /26", cidr: "10.0.0.0/26", wantErr: nil},
		{name: "valid with whitespace", cidr: "  10.0.0.0/16  ", wantErr: nil},
		{name: "default subnet", cidr: "172.30.0.0/22", wantErr: nil},

		// Empty/invalid format
		{name: "empty string", cidr: "", wantErr: ErrEmptyValue},
		{name: "whitespace only", cidr: "   ", wantErr: ErrEmptyValue},
		{name: "no prefix", cidr: "10.0.0.0", wantErr: ErrInvalidFormat},
		{name: "invalid ip", cidr: "256.0.0.0/16", wantErr: ErrInvalidFormat},
		{name: "invalid prefix", cidr: "10.0.0.0/33", wantErr: ErrInvalidFormat},
		{name: "garbage", cidr: "not-a-cidr", wantErr: ErrInvalidFormat},

		// IPv6 not supported
		{name: "ipv6", cidr: "2001:db8::/32", wantErr: ErrIPv6NotSupported},
		{name: "ipv6 loopback", cidr: "::1/128", wantErr: ErrIPv6NotSupported},

		// Reserved ranges
		{name: "loopback /8", cidr: "127.0.0.0/8", wantErr: ErrReservedRange},
		{name: "loopback subset", cidr: "127.0.0.0/24", wantErr: ErrReservedRange},
		{name: "this network", cidr: "0.0.0.0/8", wantErr: ErrReservedRange},
		{name: "link-local subset", cidr: "169.254.1.0/24", wantErr: ErrReservedRange},
		{name: "multicast subset", cidr: "239.255.255.0/24", wantErr: ErrReservedRange},
		{name: "reserved future subset", cidr: "250.0.0.0/8", wantErr: ErrReservedRange},

		// Prefix length bounds
		{name: "prefix too small /7", cidr: "8.0.0.0/7", wantErr: ErrInvalidPrefix},
		{name: "prefix too large /27", cidr: "10.0.0.0/27", wantErr: ErrInvalidPrefix},
		{name: "prefix too large /32", cidr: "10.0.0.1/32", wantErr: ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIPv4Block(tt.cidr)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateIPv4Block(%q) = %v, want nil", tt.cidr, err)
				}
				return
			}
			if err == nil {
				t.Errorf("ValidateIPv4Block(%q) = nil, want error containing %v", tt.cidr, tt.wantErr)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateIPv4Block(%q) = %v, want error containing %v", tt.cidr, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		// Valid names
		{name: "simple", input: "mock-project", wantErr: nil},
		{name: "single letter", input: "a", wantErr: nil},
		{name: "digits", input: "disk-1", wantErr: nil},
		{name: "uppercase after first", input: "myVpc", wantErr: nil},
		{name: "max length", input: "a" + strings.Repeat("b", MaxNameLength-1), wantErr: nil},

		// Empty
		{name: "empty string", input: "", wantErr: ErrEmptyValue},

		// Format
		{name: "leading digit", input: "1disk", wantErr: ErrInvalidFormat},
		{name: "leading uppercase", input: "Disk", wantErr: ErrInvalidFormat},
		{name: "trailing dash", input: "disk-", wantErr: ErrInvalidFormat},
		{name: "underscore", input: "my_disk", wantErr: ErrInvalidFormat},
		{name: "space", input: "my disk", wantErr: ErrInvalidFormat},
		{name: "surrounding whitespace", input: " disk ", wantErr: ErrInvalidFormat},
		{name: "newline", input: "disk\nx", wantErr: ErrInvalidFormat},
		{name: "null byte", input: "disk\x00", wantErr: ErrInvalidFormat},
		{name: "path traversal", input: "../etc/passwd", wantErr: ErrInvalidFormat},
		{name: "sql injection", input: "a'; DROP TABLE disks;--", wantErr: ErrInvalidFormat},

		// Length
		{name: "too long", input: "a" + strings.Repeat("b", MaxNameLength), wantErr: ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateName(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if err == nil {
				t.Errorf("ValidateName(%q) = nil, want error containing %v", tt.input, tt.wantErr)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName(%q) = %v, want error containing %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription(strings.Repeat("x", MaxDescriptionLength)); err != nil {
		t.Errorf("ValidateDescription(max) = %v, want nil", err)
	}
	if err := ValidateDescription(strings.Repeat("x", MaxDescriptionLength+1)); !errors.Is(err, ErrTooLong) {
		t.Errorf("ValidateDescription(too long) = %v, want ErrTooLong", err)
	}
}

func TestValidateSSHPublicKey(t *testing.T) {
	const ed25519 = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIDEsc5jBuNfNwNB1dHBKyeLk6aXZ2f+hd5JiNzDWE8rG user@host"
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "ed25519 with comment", key: ed25519, wantErr: nil},
		{name: "trailing newline", key: ed25519 + "\n", wantErr: nil},
		{name: "empty", key: "", wantErr: ErrEmptyValue},
		{name: "garbage", key: "not a key", wantErr: ErrInvalidFormat},
		{name: "bad base64", key: "ssh-ed25519 !!!!", wantErr: ErrInvalidFormat},
		{name: "two keys", key: ed25519 + "\n" + ed25519, wantErr: ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSSHPublicKey(tt.key)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSSHPublicKey() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSSHPublicKey() = %v, want error containing %v", err, tt.wantErr)
			}
		})
	}
}

func TestCIDRError(t *testing.T) {
	err := &CIDRError{CIDR: "10.0.0.0/33", Reason: "invalid cidr notation", Err: ErrInvalidFormat}
	if got := err.Error(); got != `invalid cidr "10.0.0.0/33": invalid cidr notation` {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidFormat) {
		t.Error("expected Unwrap to expose ErrInvalidFormat")
	}

	noReason := &CIDRError{CIDR: "x", Err: ErrEmptyValue}
	if got := noReason.Error(); got != `invalid cidr "x": value cannot be empty` {
		t.Errorf("Error() = %q", got)
	}
}

func TestNameError(t *testing.T) {
	long := strings.Repeat("a", 100)
	err := &NameError{Name: long, Reason: "too long", Err: ErrTooLong}
	msg := err.Error()
	if !strings.Contains(msg, "...") {
		t.Errorf("expected truncated name in %q", msg)
	}
	if !errors.Is(err, ErrTooLong) {
		t.Error("expected Unwrap to expose ErrTooLong")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func BenchmarkValidateName(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ValidateName("mock-project-with-a-longer-name")
	}
}

func BenchmarkValidateIPv4Block(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ValidateIPv4Block("10.0.0.0/16")
	}
}
