package sink

import (
	"fmt"

	"scrub/internal/element"
)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error       // driver-specific YAML block => struct
	Push(element.Result) error // consume one deidentified batch result
	Close() error              // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
