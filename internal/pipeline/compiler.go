package pipeline

import (
	"fmt"
	"time"

	"scrub/internal/config"
	"scrub/internal/dlp"
	"scrub/sink"
	ksink "scrub/sink/kafka"
	"scrub/sink/stdout"
	sfile "scrub/source/file"
	skafka "scrub/source/kafka"
)

// Compile loads the pipeline YAML and builds a ready Runner: validated
// DLP config, the header set resolved once and shared read-only by all
// workers, one worker per configured unit, source and sinks bound from
// their registries. Every configuration error surfaces here, before any
// record flows.
func Compile(path string) (*Runner, error) {
	cfg, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}

	dlpCfg, err := config.LoadDLPConfig(cfg.DLP.Config)
	if err != nil {
		return nil, fmt.Errorf("dlp config: %w", err)
	}
	headers, err := dlp.ResolveHeaders(dlpCfg)
	if err != nil {
		return nil, err
	}
	factory := dlp.NewGRPCFactory(dlpCfg)

	r := NewRunner(RetryPolicy{
		Attempts: cfg.RetryPolicy.Attempts,
		Backoff:  time.Duration(cfg.RetryPolicy.BackoffMS) * time.Millisecond,
	})

	for i := 0; i < cfg.Workers; i++ {
		caller, err := dlp.NewCaller(dlpCfg, headers, factory)
		if err != nil {
			return nil, err
		}
		r.AddWorker(dlp.NewShaper(dlpCfg, headers), dlp.NewPacker(dlpCfg.BatchSizeBytes), caller)
	}

	/*──────── source ───────*/
	switch cfg.Source.Kind {
	case "kafka":
		kc, err := config.LoadKafkaConfig(cfg.Source.Config)
		if err != nil {
			return nil, err
		}
		src, err := skafka.NewAdapter(cfg.Source.Driver)
		if err != nil {
			return nil, err
		}
		if err := src.Configure(kc); err != nil {
			return nil, err
		}
		r.SetSource(src)
	case "file":
		fc, err := sfile.LoadConfig(cfg.Source.Config)
		if err != nil {
			return nil, err
		}
		src := &sfile.Driver{}
		if err := src.Configure(fc); err != nil {
			return nil, err
		}
		r.SetSource(src)
	default:
		return nil, fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}

	/*──────── sinks ───────*/
	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{
				PrintRows:    cfg.SinkConfigs.Stdout.PrintRows,
				RowMaxBytes:  cfg.SinkConfigs.Stdout.RowMaxBytes,
				PrintCounter: cfg.SinkConfigs.Stdout.PrintCounter,
			})
		case "kafka":
			err = sDrv.Configure(ksink.Config{
				Brokers: cfg.SinkConfigs.Kafka.Brokers,
				Topic:   cfg.SinkConfigs.Kafka.Topic,
				Acks:    cfg.SinkConfigs.Kafka.Acks,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return nil, err
		}
		r.AddSink(sDrv)
	}
	return r, nil
}
