package spec

// File is the parsed pipeline YAML. The source block names a registered
// source driver and points at its own config file; the dlp block points at
// the redaction config; sinks are bound by name from the registry.
type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`   // "kafka", "file"
		Driver string `yaml:"driver"` // e.g. "sarama"
		Config string `yaml:"config"`
	} `yaml:"source"`

	DLP struct {
		Config string `yaml:"config"`
	} `yaml:"dlp"`

	// Workers is the number of parallel processing units; records are
	// routed to workers by key hash so one key never spans two workers.
	Workers int `yaml:"workers"`

	// RetryPolicy applies around each batch call; the caller itself never
	// retries.
	RetryPolicy struct {
		Attempts  int `yaml:"attempts"`
		BackoffMS int `yaml:"backoff_ms"`
	} `yaml:"retry_policy"`

	Sinks       []string `yaml:"sinks"`
	SinkConfigs struct {
		Kafka  KafkaSink  `yaml:"kafka"`
		Stdout StdoutSink `yaml:"stdout"`
	} `yaml:"sink_configs"`
}

type KafkaSink struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
}

type StdoutSink struct {
	PrintRows    bool `yaml:"print_rows"`
	RowMaxBytes  int  `yaml:"row_max_bytes"`
	PrintCounter bool `yaml:"print_counter"`
}
