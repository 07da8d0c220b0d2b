package core

import (
	"fmt"
	"strings"
)

// Core types.
const (
	TypeInproc = "inproc"
	TypeTest   = "test"
	TypeTCP    = "tcp"
)

var typeAliases = map[string]string{
	"":          TypeInproc,
	"default":   TypeInproc,
	"inproc":    TypeInproc,
	"inprocess": TypeInproc,
	"local":     TypeInproc,
	"test":      TypeTest,
	"test_core": TypeTest,
	"tcp":       TypeTCP,
	"ip":        TypeTCP,
}

// knownUnavailable are core types recognized by name but not built in.
var knownUnavailable = map[string]bool{
	"udp":          true,
	"zmq":          true,
	"zeromq":       true,
	"zmq_ss":       true,
	"tcp_ss":       true,
	"ipc":          true,
	"interprocess": true,
	"mpi":          true,
	"websocket":    true,
	"http":         true,
	"nng":          true,
	"null":         true,
	"multi":        true,
}

func normalizeType(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// ParseType maps a core type name to one of the available types.
func ParseType(name string) (string, error) {
	n := normalizeType(name)
	if t, ok := typeAliases[n]; ok {
		return t, nil
	}
	if knownUnavailable[n] {
		return "", fmt.Errorf("%w: %s", ErrTypeNotAvailable, name)
	}
	return "", fmt.Errorf("%w: unknown core type %q", ErrInvalidConfig, name)
}

// IsCoreTypeAvailable reports whether a core of the named type can be created.
func IsCoreTypeAvailable(name string) bool {
	_, err := ParseType(name)
	return err == nil
}
