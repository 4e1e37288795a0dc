// Package element defines the types passed between pipeline stages:
// source adapters emit Records, sinks consume Results.
package element

import (
	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// Record is one input element: key identifies origin (file name, message
// key), content is raw text or one delimited line.
type Record struct {
	Key     string
	Content string
}

// EmitFunc is what a source adapter calls to hand one record to the
// pipeline. A non-nil error tells the source to stop.
type EmitFunc func(Record) error

// Result pairs a source key with the deidentified table returned by the
// service for one batch of that key's rows.
type Result struct {
	Key      string
	Response *dlppb.DeidentifyContentResponse
}
