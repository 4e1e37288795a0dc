package kafka

import (
	"context"

	"scrub/internal/element"
)

type Adapter interface {
	Configure(Config) error
	Run(context.Context, element.EmitFunc) error
	Close() error
}
