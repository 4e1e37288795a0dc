package dlp

import (
	"fmt"
	"strings"

	"cloud.google.com/go/dlp/apiv2/dlppb"

	"scrub/internal/logging"
	"scrub/internal/telemetry"
)

// Shaper converts one record's content into one table row. It is stateless
// per call; the delimiter and header set are fixed at construction.
type Shaper struct {
	delimiter string
	headers   *HeaderSet
	strict    bool
}

// NewShaper builds a shaper for cfg against the resolved header set.
func NewShaper(cfg Config, headers *HeaderSet) *Shaper {
	return &Shaper{
		delimiter: cfg.CSV.Delimiter,
		headers:   headers,
		strict:    cfg.CSV.Strict,
	}
}

// Shape produces the row for content. Without a delimiter the whole
// content becomes a single field. With one, content is split into fields;
// a field count differing from the header count is counted and logged, and
// rejected only in strict mode.
func (s *Shaper) Shape(content string) (*dlppb.Table_Row, error) {
	var fields []string
	if s.delimiter == "" {
		fields = []string{content}
	} else {
		fields = strings.Split(content, s.delimiter)
		if len(fields) != s.headers.Len() {
			telemetry.RowsMismatched.Inc()
			if s.strict {
				return nil, fmt.Errorf("dlp: row has %d fields, header has %d", len(fields), s.headers.Len())
			}
			logging.L().Warn("row field count differs from header count",
				"fields", len(fields), "headers", s.headers.Len())
		}
	}

	values := make([]*dlppb.Value, len(fields))
	for i, f := range fields {
		values[i] = &dlppb.Value{Type: &dlppb.Value_StringValue{StringValue: f}}
	}
	telemetry.RowsShaped.Inc()
	return &dlppb.Table_Row{Values: values}, nil
}
