package broker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// ErrInvalidConnections is returned for malformed connection files.
var ErrInvalidConnections = errors.New("invalid connection file")

// Connection is one link described in a connection file.
type Connection struct {
	Kind   wire.LinkKind
	Source string
	Target string
}

// Sections of a connection file and the link kind each describes. Entries
// are either [source, target] pairs or {source: ..., target: ...} tables.
var connectionSections = []struct {
	key  string
	kind wire.LinkKind
}{
	{"connections", wire.LinkData},
	{"endpoints", wire.LinkEndpoint},
	{"subscriptions", wire.LinkEndpointSubscription},
	{"source_filters", wire.LinkSourceFilter},
	{"destination_filters", wire.LinkDestinationFilter},
	{"clone_deliveries", wire.LinkCloneDelivery},
	{"dependencies", wire.LinkDependency},
}

// Connection file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// LoadConnections reads a JSON, YAML or TOML connection file.
func LoadConnections(path string) ([]Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connections: %w", err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = FormatTOML
	}
	return ParseConnections(data, format)
}

// ParseConnections decodes connection file content. JSON documents are
// read as YAML.
func ParseConnections(data []byte, format string) ([]Connection, error) {
	doc := make(map[string]any)
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnections, err)
		}
	case FormatYAML, "json", "":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnections, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConnections, format)
	}

	var out []Connection
	for _, section := range connectionSections {
		raw, ok := doc[section.key]
		if !ok {
			continue
		}
		entries, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidConnections, section.key)
		}
		for n, entry := range entries {
			source, target, err := connectionPair(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidConnections, section.key, n, err)
			}
			out = append(out, Connection{Kind: section.kind, Source: source, Target: target})
		}
	}
	return out, nil
}

func connectionPair(entry any) (string, string, error) {
	var source, target any
	switch v := entry.(type) {
	case []any:
		if len(v) != 2 {
			return "", "", fmt.Errorf("expected 2 names, got %d", len(v))
		}
		source, target = v[0], v[1]
	case map[string]any:
		source, target = v["source"], v["target"]
	default:
		return "", "", fmt.Errorf("unexpected entry %v", entry)
	}
	s, ok1 := source.(string)
	t, ok2 := target.(string)
	if !ok1 || !ok2 || s == "" || t == "" {
		return "", "", fmt.Errorf("source and target must be non-empty names")
	}
	return s, t, nil
}
