// Package fixtures holds the canonical mock data set the store starts from
// and resets to.
package fixtures

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oxidecomputer/console-sub002/internal/storage"
)

//go:embed fixtures.yaml
var canonical []byte

// Well-known fixture identifiers.
const (
	ProjectID      = "5fbab865-3d09-4c16-a22f-ca9c312b0286"
	OtherProjectID = "e7bd835e-831e-4257-b600-f1db32844c8c"
	NoVpcProjectID = "f8a5c3d2-9b1e-4f7a-8c2d-3e4b5f6a7c8d"
	InstanceID     = "935499b3-fd96-432a-9c21-83a3dc1eece4"
	VpcID          = "87774ff3-c6c1-475b-b920-ba2954f390fe"
	DefaultUserID  = "2e28576f-0a1d-4b5c-9c8e-7b6a1f0d3e21"
	DefaultSiloID  = "6d3a9c06-475e-4f75-b272-c0d0e3f980fa"
)

// Load decodes and validates the embedded fixture set.
func Load() (*storage.InitialState, error) {
	return Parse(canonical)
}

// MustLoad is Load for callers that cannot proceed without fixtures.
func MustLoad() *storage.InitialState {
	st, err := Load()
	if err != nil {
		panic(err)
	}
	return st
}

// LoadFile decodes and validates a fixture set from path. An empty path
// selects the embedded set.
func LoadFile(path string) (*storage.InitialState, error) {
	if path == "" {
		return Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown fields are rejected.
func Parse(data []byte) (*storage.InitialState, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var st storage.InitialState
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &st, nil
}
