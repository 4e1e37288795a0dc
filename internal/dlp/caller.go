package dlp

import (
	"context"
	"fmt"

	"cloud.google.com/go/dlp/apiv2/dlppb"

	"scrub/internal/telemetry"
)

// Caller issues exactly one deidentify request per flushed batch. Batches
// already respect the payload ceiling, so there is never a reason to split
// a call. Failures are returned as-is: retry policy belongs to the
// pipeline layer, not here.
type Caller struct {
	parent                 string
	inspectTemplateName    string
	deidentifyTemplateName string
	inspectConfig          *dlppb.InspectConfig
	deidentifyConfig       *dlppb.DeidentifyConfig
	headers                *HeaderSet
	factory                ClientFactory
}

// NewCaller builds a caller from a validated config, the resolved header
// set, and the client factory. cfg must have passed Validate.
func NewCaller(cfg Config, headers *HeaderSet, factory ClientFactory) (*Caller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if headers == nil || headers.Len() == 0 {
		return nil, fmt.Errorf("dlp: caller needs a non-empty header set")
	}
	return &Caller{
		parent:                 cfg.Parent(),
		inspectTemplateName:    cfg.InspectTemplateName,
		deidentifyTemplateName: cfg.DeidentifyTemplateName,
		inspectConfig:          cfg.InspectConfig,
		deidentifyConfig:       cfg.DeidentifyConfig,
		headers:                headers,
		factory:                factory,
	}, nil
}

// Deidentify sends one batch and returns the service response. The client
// connection is acquired for this call only and released on every exit
// path.
func (c *Caller) Deidentify(ctx context.Context, batch *Batch) (*dlppb.DeidentifyContentResponse, error) {
	client, err := c.factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlp: connect: %w", err)
	}
	defer client.Close()

	telemetry.ServiceRequests.Inc()
	resp, err := client.DeidentifyContent(ctx, c.buildRequest(batch))
	if err != nil {
		telemetry.ServiceErrors.Inc()
		return nil, fmt.Errorf("dlp: deidentify batch for %q (%d rows): %w", batch.Key, len(batch.Rows), err)
	}
	return resp, nil
}

func (c *Caller) buildRequest(batch *Batch) *dlppb.DeidentifyContentRequest {
	table := &dlppb.Table{
		Headers: c.headers.FieldIDs(),
		Rows:    batch.Rows,
	}
	return &dlppb.DeidentifyContentRequest{
		Parent:                 c.parent,
		InspectTemplateName:    c.inspectTemplateName,
		DeidentifyTemplateName: c.deidentifyTemplateName,
		InspectConfig:          c.inspectConfig,
		DeidentifyConfig:       c.deidentifyConfig,
		Item: &dlppb.ContentItem{
			DataItem: &dlppb.ContentItem_Table{Table: table},
		},
	}
}
