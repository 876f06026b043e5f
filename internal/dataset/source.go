package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when a dataset part does not exist.
var ErrNotFound = errors.New("not found")

// Source fetches the parts of a dataset by file name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// StatusError is a non-success HTTP response to a fetch.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// Unwrap lets errors.Is match ErrNotFound on 404 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// DirSource reads dataset parts from a local directory.
type DirSource struct {
	Dir string
}

// Fetch reads name from the directory.
func (s DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

// HTTPSource fetches dataset parts relative to a base URL.
type HTTPSource struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
}

// Fetch GETs name under the base URL. Any non-2xx status is an error.
func (s HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	u := strings.TrimSuffix(s.BaseURL, "/") + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u, Code: resp.StatusCode, Status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// S3Source reads dataset parts from an S3-compatible bucket.
type S3Source struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// S3Config holds object storage credentials for s3:// datasets.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Insecure  bool
}

// Fetch downloads Prefix/name from the bucket.
func (s S3Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := strings.TrimPrefix(strings.TrimSuffix(s.Prefix, "/")+"/"+name, "/")
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return data, nil
}

func (s S3Source) mapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return fmt.Errorf("s3://%s/%s: %w", s.Bucket, key, ErrNotFound)
	}
	return fmt.Errorf("s3://%s/%s: %w", s.Bucket, key, err)
}

// Location is a parsed dataset base path: where the parts live and the base
// file name that the .shp/.dbf/.shx/.prj extensions are appended to.
type Location struct {
	Source Source
	Name   string
}

// ParseLocation resolves a dataset base path. http(s):// prefixes fetch over
// HTTP, s3://bucket/key-prefix reads from object storage, anything else is a
// local path.
func ParseLocation(base string, s3cfg S3Config, userAgent string) (Location, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return Location{}, errors.New("empty dataset path")
	}
	base = strings.TrimSuffix(base, ".shp")

	switch {
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		u, err := url.Parse(base)
		if err != nil {
			return Location{}, fmt.Errorf("parsing dataset url: %w", err)
		}
		dir, name := splitLast(u.Path)
		u.Path = dir
		return Location{
			Source: HTTPSource{
				BaseURL:   u.String(),
				Client:    &http.Client{Timeout: 60 * time.Second},
				UserAgent: userAgent,
			},
			Name: name,
		}, nil

	case strings.HasPrefix(base, "s3://"):
		rest := strings.TrimPrefix(base, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid s3 dataset path %q", base)
		}
		client, err := minio.New(s3cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s3cfg.AccessKey, s3cfg.SecretKey, ""),
			Secure: !s3cfg.Insecure,
		})
		if err != nil {
			return Location{}, fmt.Errorf("creating s3 client: %w", err)
		}
		prefix, name := splitLast(key)
		return Location{
			Source: S3Source{Client: client, Bucket: bucket, Prefix: prefix},
			Name:   name,
		}, nil

	default:
		return Location{
			Source: DirSource{Dir: filepath.Dir(base)},
			Name:   filepath.Base(base),
		}, nil
	}
}

func splitLast(p string) (dir, name string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
