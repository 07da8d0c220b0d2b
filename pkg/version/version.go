// Package version provides the library and protocol versions and the
// compatibility check applied when nodes register.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Library is the release version of this module.
const Library = "0.4.0"

// Current is the node protocol version implemented by this library.
const Current = "1.0"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// CheckPeer reports whether a registering node speaking version s can join.
// An empty version is accepted as the current one.
func CheckPeer(s string) error {
	if s == "" {
		return nil
	}
	peer, err := Parse(s)
	if err != nil {
		return err
	}
	current, _ := Parse(Current)
	if !current.Compatible(peer) {
		return fmt.Errorf("protocol %s is incompatible with %s", peer, current)
	}
	return nil
}

// String returns the version banner reported by "version" queries.
func String() string {
	return Library + " (protocol " + Current + ")"
}
