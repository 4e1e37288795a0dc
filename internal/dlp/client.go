package dlp

// Client wraps the service connection behind the minimal surface the
// caller needs, so tests and alternative transports can substitute their
// own implementation.
import (
	"context"

	dlpapi "cloud.google.com/go/dlp/apiv2"
	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the slice of the DLP service client the caller uses. Satisfied
// by *dlp.Client from cloud.google.com/go/dlp/apiv2.
type Client interface {
	DeidentifyContent(ctx context.Context, req *dlppb.DeidentifyContentRequest, opts ...gax.CallOption) (*dlppb.DeidentifyContentResponse, error)
	Close() error
}

// ClientFactory opens one connection per batch call; the caller closes it
// on every exit path.
type ClientFactory interface {
	NewClient(ctx context.Context) (Client, error)
}

// GRPCFactory dials the real service. With an Endpoint override and
// Insecure set it connects to a local emulator over a plaintext gRPC
// connection instead of the default authenticated channel.
type GRPCFactory struct {
	endpoint string
	insecure bool
}

// NewGRPCFactory builds a factory from the endpoint settings in cfg.
func NewGRPCFactory(cfg Config) *GRPCFactory {
	return &GRPCFactory{endpoint: cfg.Endpoint, insecure: cfg.Insecure}
}

func (f *GRPCFactory) NewClient(ctx context.Context) (Client, error) {
	if f.endpoint == "" {
		return dlpapi.NewClient(ctx)
	}
	if !f.insecure {
		return dlpapi.NewClient(ctx, option.WithEndpoint(f.endpoint))
	}
	conn, err := grpc.NewClient(f.endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return dlpapi.NewClient(ctx, option.WithGRPCConn(conn))
}
