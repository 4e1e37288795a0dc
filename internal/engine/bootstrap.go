package engine

import (
	"fmt"

	"scrub/internal/pipeline"
	"scrub/internal/telemetry"
)

type Config struct {
	MetricsPort int
	PipelineYml string
}

func Bootstrap(cfg Config) (*Engine, error) {
	// 1. pipeline runner (all construction-time validation happens here)
	runner, err := pipeline.Compile(cfg.PipelineYml)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	// 2. metrics
	telemetry.Expose(cfg.MetricsPort)

	return &Engine{runner: runner}, nil
}
