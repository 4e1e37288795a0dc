package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"scrub/internal/dlp"
)

const defaultBatchSizeBytes = 100_000

// LoadDLPConfig merges YAML (if present) with env-vars
// (prefix `SCRUB_DLP__`, delimiter `__`), loads any referenced protojson
// policy files, and validates the result. Construction-time errors stop
// the pipeline here; nothing is deferred to run time.
func LoadDLPConfig(path string) (dlp.Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return dlp.Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return dlp.Config{}, fmt.Errorf("dlp schema_version %q not supported (want v1)", sv)
	}

	_ = k.Load(env.Provider("SCRUB_DLP__", "__", nil), nil)

	var cfg dlp.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.BatchSizeBytes == 0 {
		cfg.BatchSizeBytes = defaultBatchSizeBytes
	}

	dir := filepath.Dir(path)
	cfg.CSV.HeaderFile = resolve(dir, cfg.CSV.HeaderFile)
	cfg.InspectConfigFile = resolve(dir, cfg.InspectConfigFile)
	cfg.DeidentifyConfigFile = resolve(dir, cfg.DeidentifyConfigFile)

	if cfg.InspectConfigFile != "" {
		ic := &dlppb.InspectConfig{}
		if err := loadPolicyFile(cfg.InspectConfigFile, ic); err != nil {
			return cfg, err
		}
		cfg.InspectConfig = ic
	}
	if cfg.DeidentifyConfigFile != "" {
		dc := &dlppb.DeidentifyConfig{}
		if err := loadPolicyFile(cfg.DeidentifyConfigFile, dc); err != nil {
			return cfg, err
		}
		cfg.DeidentifyConfig = dc
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadPolicyFile reads a protojson-encoded policy object (the format the
// service's REST API and gcloud emit).
func loadPolicyFile(path string, msg proto.Message) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("dlp policy file: %w", err)
	}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return fmt.Errorf("dlp policy file %s: %w", path, err)
	}
	return nil
}
