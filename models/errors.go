package models

import (
	"github.com/pkg/errors"
)

// ErrUnknownVertex is returned by Load when an edge names a vertex that is
// neither in the payload nor in the graph
var ErrUnknownVertex = errors.New("models: edge references an unknown vertex")
