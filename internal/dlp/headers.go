package dlp

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// UnstructuredHeader is the synthesized column name used when no CSV
// headers are configured and each record is a single opaque value.
const UnstructuredHeader = "value"

// HeaderSet is the ordered field-name schema applied to every row of a
// processing unit. It is resolved once at pipeline compile time and shared
// read-only by all workers; never mutated afterwards.
type HeaderSet struct {
	names []string
}

// ResolveHeaders produces the effective header set for cfg: the inline
// list, the first line of the header file split on the delimiter, or the
// single synthesized unstructured column.
func ResolveHeaders(cfg Config) (*HeaderSet, error) {
	switch {
	case len(cfg.CSV.Headers) > 0:
		return &HeaderSet{names: append([]string(nil), cfg.CSV.Headers...)}, nil
	case cfg.CSV.HeaderFile != "":
		names, err := readHeaderLine(cfg.CSV.HeaderFile, cfg.CSV.Delimiter)
		if err != nil {
			return nil, err
		}
		return &HeaderSet{names: names}, nil
	default:
		return &HeaderSet{names: []string{UnstructuredHeader}}, nil
	}
}

// Len returns the number of columns.
func (h *HeaderSet) Len() int { return len(h.names) }

// Names returns the column names in order.
func (h *HeaderSet) Names() []string { return h.names }

// Unstructured reports whether the set is the synthesized single column.
func (h *HeaderSet) Unstructured() bool {
	return len(h.names) == 1 && h.names[0] == UnstructuredHeader
}

// FieldIDs renders the headers as the request's field identifiers.
func (h *HeaderSet) FieldIDs() []*dlppb.FieldId {
	out := make([]*dlppb.FieldId, len(h.names))
	for i, n := range h.names {
		out[i] = &dlppb.FieldId{Name: n}
	}
	return out
}

func readHeaderLine(path, delimiter string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dlp: header file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("dlp: header file %s: %w", path, err)
		}
		return nil, fmt.Errorf("dlp: header file %s is empty", path)
	}
	line := strings.TrimRight(sc.Text(), "\r")
	if delimiter == "" {
		return []string{line}, nil
	}
	return strings.Split(line, delimiter), nil
}
