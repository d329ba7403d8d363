package neocities

import (
	"context"
	"io"
)

// ClientAPI defines the methods required to interact with one NeoCities site.
// It mirrors the concrete client so it can be mocked in tests.
type ClientAPI interface {
	Info(ctx context.Context, site string) (*InfoResponse, error)
	List(ctx context.Context, dir string) (*ListResponse, error)
	Upload(ctx context.Context, localPaths []string) (*Response, error)
	Delete(ctx context.Context, paths []string) (*Response, error)
	Download(ctx context.Context, remotePath string, w io.Writer) error
}
