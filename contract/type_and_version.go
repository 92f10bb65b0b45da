package contract

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// TypeAndVersion identifies the contract the client was built against, e.g. "Voting 1.0.0".
type TypeAndVersion struct {
	Type    string         `json:"Type" yaml:"type"`
	Version semver.Version `json:"Version" yaml:"version"`
}

func (tv TypeAndVersion) String() string {
	return fmt.Sprintf("%s %s", tv.Type, tv.Version.String())
}

func (tv TypeAndVersion) Equal(other TypeAndVersion) bool {
	return tv.Type == other.Type && tv.Version.Equal(&other.Version)
}

// Compatible reports whether other has the same type and major version.
func (tv TypeAndVersion) Compatible(other TypeAndVersion) bool {
	return tv.Type == other.Type && tv.Version.Major() == other.Version.Major()
}

func MustTypeAndVersionFromString(s string) TypeAndVersion {
	tv, err := TypeAndVersionFromString(s)
	if err != nil {
		panic(err)
	}

	return tv
}

// TypeAndVersionFromString parses "<type> <semver>".
func TypeAndVersionFromString(s string) (TypeAndVersion, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return TypeAndVersion{}, fmt.Errorf("invalid type and version string: %q", s)
	}
	v, err := semver.NewVersion(parts[1])
	if err != nil {
		return TypeAndVersion{}, fmt.Errorf("invalid version in %q: %w", s, err)
	}

	return TypeAndVersion{Type: parts[0], Version: *v}, nil
}
