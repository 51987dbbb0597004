package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"snowdensity/internal/external"
	"snowdensity/internal/types"
)

// Source opens the remote bytes of an artifact. Implementations bound their
// own retries; the cache calls Open once per fetch.
type Source interface {
	Name() string
	Open(ctx context.Context, d Descriptor) (io.ReadCloser, error)
}

// FileSource reads artifacts from the local filesystem.
type FileSource struct{}

func (FileSource) Name() string { return string(SchemeFile) }

func (FileSource) Open(_ context.Context, d Descriptor) (io.ReadCloser, error) {
	loc, err := ParseLocation(d.Location)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != SchemeFile {
		return nil, fmt.Errorf("file source cannot open %q", d.Location)
	}
	return os.Open(loc.Path)
}

// HTTPSource downloads artifacts through the resilient external client.
type HTTPSource struct {
	client *external.BaseClient
	token  types.SecretString
}

// NewHTTPSource creates an HTTPSource. A non-empty token is sent as a bearer
// credential.
func NewHTTPSource(client *external.BaseClient, token types.SecretString) *HTTPSource {
	return &HTTPSource{client: client, token: token}
}

func (s *HTTPSource) Name() string { return string(SchemeHTTP) }

func (s *HTTPSource) Open(ctx context.Context, d Descriptor) (io.ReadCloser, error) {
	loc, err := ParseLocation(d.Location)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != SchemeHTTP {
		return nil, fmt.Errorf("http source cannot open %q", d.Location)
	}
	header := http.Header{"Accept": {"application/octet-stream"}}
	if tok := s.token.Unmask(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	return s.client.Get(ctx, loc.URL, header)
}

// S3GetClient abstracts the S3 GetObject operation for testability.
type S3GetClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source downloads artifacts from S3. Retries are bounded by the SDK
// client's retryer.
type S3Source struct {
	client S3GetClient
}

// NewS3Source creates an S3Source.
func NewS3Source(client S3GetClient) *S3Source {
	return &S3Source{client: client}
}

func (s *S3Source) Name() string { return string(SchemeS3) }

func (s *S3Source) Open(ctx context.Context, d Descriptor) (io.ReadCloser, error) {
	loc, err := ParseLocation(d.Location)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != SchemeS3 {
		return nil, fmt.Errorf("s3 source cannot open %q", d.Location)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	return out.Body, nil
}

// Router dispatches to a Source by the scheme of the descriptor's location.
type Router map[Scheme]Source

func (r Router) Name() string { return "router" }

func (r Router) Open(ctx context.Context, d Descriptor) (io.ReadCloser, error) {
	loc, err := ParseLocation(d.Location)
	if err != nil {
		return nil, err
	}
	src, ok := r[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("no source configured for %s locations", loc.Scheme)
	}
	return src.Open(ctx, d)
}
