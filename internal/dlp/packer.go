package dlp

import (
	"cloud.google.com/go/dlp/apiv2/dlppb"
	"google.golang.org/protobuf/proto"

	"scrub/internal/telemetry"
)

// Batch is a size-bounded group of rows sharing one source key, sent to
// the service as a single request.
type Batch struct {
	Key   string
	Rows  []*dlppb.Table_Row
	Bytes int
}

// Packer accumulates rows per key until appending one more would push the
// open batch over the byte budget, then hands the batch back for dispatch.
// One packer serves one worker's sequential loop; it holds no locks. Row
// size is the row's serialized proto size, so the budget tracks the actual
// request payload.
type Packer struct {
	budget int
	open   map[string]*Batch
}

// NewPacker builds a packer with the configured byte budget. The budget is
// assumed already validated against PayloadLimitBytes.
func NewPacker(budget int) *Packer {
	return &Packer{budget: budget, open: make(map[string]*Batch)}
}

// Add appends row to key's open batch. If the batch is non-empty and the
// row would overflow the budget, the open batch is returned flushed and a
// new one is started holding just this row. A row larger than the whole
// budget still ends up in a batch of its own - forward progress is never
// blocked on an oversized row.
func (p *Packer) Add(key string, row *dlppb.Table_Row) *Batch {
	size := proto.Size(row)
	cur := p.open[key]
	if cur == nil {
		cur = &Batch{Key: key}
		p.open[key] = cur
	}

	var flushed *Batch
	if len(cur.Rows) > 0 && cur.Bytes+size > p.budget {
		flushed = cur
		cur = &Batch{Key: key}
		p.open[key] = cur
		telemetry.BatchesFlushed.WithLabelValues("size").Inc()
		telemetry.BatchBytes.Observe(float64(flushed.Bytes))
	}
	cur.Rows = append(cur.Rows, row)
	cur.Bytes += size
	return flushed
}

// FlushAll drains every non-empty open batch; the end-of-stream hook.
// Cross-key order is unspecified. Empty batches are never emitted.
func (p *Packer) FlushAll() []*Batch {
	var out []*Batch
	for key, b := range p.open {
		delete(p.open, key)
		if len(b.Rows) == 0 {
			continue
		}
		telemetry.BatchesFlushed.WithLabelValues("final").Inc()
		telemetry.BatchBytes.Observe(float64(b.Bytes))
		out = append(out, b)
	}
	return out
}

// Pending returns the number of keys with an open batch.
func (p *Packer) Pending() int { return len(p.open) }
