//go:build tools

package tools

// Mocks under pkg/transport/mocks are generated with mockery (see .mockery.yaml).
import (
	_ "github.com/vektra/mockery/v2"
)
