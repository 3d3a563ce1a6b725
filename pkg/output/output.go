package output

import (
	"context"

	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

type Output interface {
	Publish([]sensor.Reading) error
	Close() error
}

// Server is implemented by outputs that also listen for clients. Serve
// blocks until ctx is done.
type Server interface {
	Serve(ctx context.Context) error
}

// helper constructors are in subpackages
