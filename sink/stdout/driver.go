package stdout

import (
	"fmt"
	"strings"
	"sync/atomic"

	"cloud.google.com/go/dlp/apiv2/dlppb"

	"scrub/internal/element"
	"scrub/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	PrintRows    bool `yaml:"print_rows"`    // print each transformed row
	RowMaxBytes  int  `yaml:"row_max_bytes"` // truncate printed rows (0 = no limit)
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
}

var seq uint64

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(r element.Result) error {
	table := r.Response.GetItem().GetTable()
	rows := len(table.GetRows())

	if d.cfg.PrintCounter {
		fmt.Printf("[sink %06d] %s: %d rows\n", atomic.AddUint64(&seq, 1), r.Key, rows)
	} else {
		fmt.Printf("[sink] %s: %d rows\n", r.Key, rows)
	}

	if d.cfg.PrintRows {
		for _, row := range table.GetRows() {
			line := renderRow(row)
			if d.cfg.RowMaxBytes > 0 && len(line) > d.cfg.RowMaxBytes {
				line = line[:d.cfg.RowMaxBytes] + "..."
			}
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

func (d *driver) Close() error { return nil }

func renderRow(row *dlppb.Table_Row) string {
	fields := make([]string, len(row.GetValues()))
	for i, v := range row.GetValues() {
		fields[i] = v.GetStringValue()
	}
	return strings.Join(fields, "|")
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
