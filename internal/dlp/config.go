package dlp

import (
	"errors"
	"fmt"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// PayloadLimitBytes is the hard request-size ceiling imposed by the DLP
// service; batch_size_bytes must not exceed it.
const PayloadLimitBytes = 524000

// CSVConfig controls tabular shaping. With an empty Delimiter input is
// treated as unstructured and the whole content becomes a single field.
type CSVConfig struct {
	Delimiter  string   `koanf:"delimiter"`
	Headers    []string `koanf:"headers"`
	HeaderFile string   `koanf:"header_file"`
	Strict     bool     `koanf:"strict"`
}

// Config is the immutable policy snapshot used to build requests. It is
// validated once, before the pipeline starts; templates and full config
// objects may be combined, but exactly one of DeidentifyTemplateName or
// DeidentifyConfig is required.
type Config struct {
	ProjectID      string `koanf:"project_id"`
	BatchSizeBytes int    `koanf:"batch_size_bytes"`

	InspectTemplateName    string `koanf:"inspect_template_name"`
	DeidentifyTemplateName string `koanf:"deidentify_template_name"`

	InspectConfigFile    string `koanf:"inspect_config_file"`
	DeidentifyConfigFile string `koanf:"deidentify_config_file"`

	CSV CSVConfig `koanf:"csv"`

	// Endpoint overrides the default service endpoint, e.g. a local
	// emulator. Insecure dials it without TLS.
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`

	// Full policy objects; populated from the *_config_file paths by the
	// loader, or set directly by embedding programs.
	InspectConfig    *dlppb.InspectConfig    `koanf:"-"`
	DeidentifyConfig *dlppb.DeidentifyConfig `koanf:"-"`
}

// Validate enforces the construction-time rules. Everything here aborts
// pipeline construction; nothing is re-checked at run time.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("dlp: project_id is required")
	}
	if c.DeidentifyTemplateName == "" && c.DeidentifyConfig == nil {
		return errors.New("dlp: either deidentify_template_name or deidentify_config must be set")
	}
	if c.BatchSizeBytes <= 0 {
		return fmt.Errorf("dlp: batch_size_bytes must be positive, got %d", c.BatchSizeBytes)
	}
	if c.BatchSizeBytes > PayloadLimitBytes {
		return fmt.Errorf("dlp: batch_size_bytes %d exceeds the service payload limit %d", c.BatchSizeBytes, PayloadLimitBytes)
	}
	if c.CSV.Delimiter == "" && (len(c.CSV.Headers) > 0 || c.CSV.HeaderFile != "") {
		return errors.New("dlp: csv headers configured without csv.delimiter")
	}
	if c.CSV.Strict && c.CSV.Delimiter == "" {
		return errors.New("dlp: csv.strict requires csv.delimiter")
	}
	return nil
}

// Parent returns the request parent resource name.
func (c Config) Parent() string {
	return "projects/" + c.ProjectID
}
