// Package artifact acquires, verifies and caches the learned density model.
//
// A Cache moves through Uninitialized, Fetching and Ready. A failed fetch
// leaves it in FetchFailed, from which the next Load starts over. Bytes come
// from a Source (local file, HTTP or S3) and are persisted under the cache
// directory so later processes can reuse them once size and SHA-256 match the
// Descriptor.
package artifact

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Descriptor pins one immutable artifact version.
type Descriptor struct {
	ID       string `json:"id" validate:"required,excludesall=/\\"`
	Version  string `json:"version" validate:"required,excludesall=/\\"`
	Location string `json:"location" validate:"required"`
	SHA256   string `json:"sha256" validate:"required,len=64,hexadecimal"`
	Size     int64  `json:"size" validate:"gt=0"`
}

var validate = validator.New()

// Validate checks that the descriptor is complete enough to verify a download.
func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid artifact descriptor: %w", err)
	}
	if _, err := ParseLocation(d.Location); err != nil {
		return err
	}
	return nil
}

// FileName is the name of the persisted copy inside the cache directory.
func (d Descriptor) FileName() string {
	return fmt.Sprintf("%s-%s.bundle", d.ID, d.Version)
}

// Key identifies the artifact in logs and metrics.
func (d Descriptor) Key() string {
	return d.ID + "@" + d.Version
}

// Scheme is the transport a location resolves to.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeHTTP Scheme = "http"
	SchemeS3   Scheme = "s3"
)

// Location is a parsed artifact location.
type Location struct {
	Scheme Scheme
	// Path is the local path for file locations.
	Path string
	// URL is the full URL for HTTP(S) locations.
	URL string
	// Bucket and Key address S3 objects.
	Bucket, Key string
}

// ParseLocation accepts s3://bucket/key, http(s):// URLs, file:// URLs and
// bare filesystem paths.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty artifact location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeFile, Path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid artifact location %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Path: u.Path}, nil
	case "http", "https":
		return Location{Scheme: SchemeHTTP, URL: raw}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("s3 location %q needs a bucket and key", raw)
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	}
	return Location{}, fmt.Errorf("unsupported artifact location scheme %q", u.Scheme)
}
