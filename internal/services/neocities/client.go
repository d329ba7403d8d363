package neocities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/jonboulle/clockwork"
	"github.com/neocities-go/neocities/internal/services/pacer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	DefaultAPIURL = "https://neocities.org/api/"
	userAgent     = "neocities-go"

	endpointInfo   = "info"
	endpointList   = "list"
	endpointUpload = "upload"
	endpointDelete = "delete"
	endpointKey    = "key"
)

// Options configures a Client. The zero value talks to the public API with
// the default delay between calls and the OS filesystem.
type Options struct {
	// APIURL overrides DefaultAPIURL.
	APIURL string
	// SiteURL overrides the public site host used by Download,
	// https://<site>.neocities.org/ by default.
	SiteURL string
	// Root is the local project directory; defaults to the site name.
	Root string
	// Delay is the pause after every call. Nil means pacer.DefaultDelay.
	Delay *time.Duration
	// Timeout bounds a single request. Zero means no limit beyond the context.
	Timeout time.Duration
	Clock   clockwork.Clock
	Fs      afero.Fs
	// Logger defaults to a discarding logger.
	Logger *logrus.Logger
}

// Client represents a NeoCities API client bound to one site
type Client struct {
	site    string
	apiKey  string
	root    string
	apiURL  string
	siteURL string
	http    *req.Client
	pacer   *pacer.Pacer
	fs      afero.Fs
	logger  *logrus.Logger
}

var _ ClientAPI = (*Client)(nil)

// NewClient creates a new NeoCities client for site, authenticated with apiKey
func NewClient(site, apiKey string, opts Options) *Client {
	root := opts.Root
	if root == "" {
		root = site
	}

	delay := pacer.DefaultDelay
	if opts.Delay != nil {
		delay = *opts.Delay
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Client{
		site:    site,
		apiKey:  apiKey,
		root:    root,
		apiURL:  withSlash(orDefault(opts.APIURL, DefaultAPIURL)),
		siteURL: withSlash(orDefault(opts.SiteURL, fmt.Sprintf("https://%s.neocities.org/", site))),
		http:    newHTTPClient(opts.Timeout),
		pacer:   pacer.New(pacer.Config{Delay: delay, Clock: opts.Clock}),
		fs:      fs,
		logger:  loggerOrDiscard(opts.Logger),
	}
}

// Site returns the configured site name.
func (c *Client) Site() string { return c.site }

// APIKey returns the key the client authenticates with.
func (c *Client) APIKey() string { return c.apiKey }

// Root returns the local project directory.
func (c *Client) Root() string { return c.root }

// Delay returns the pause taken after every call.
func (c *Client) Delay() time.Duration { return c.pacer.Delay() }

// RemotePath converts a local path into the root-relative path the API uses.
func (c *Client) RemotePath(p string) (string, error) {
	return RelPath(c.root, p)
}

// Info retrieves metadata for site, or for the client's own site when site is empty
func (c *Client) Info(ctx context.Context, site string) (*InfoResponse, error) {
	if site == "" {
		site = c.site
	}

	var result InfoResponse
	if err := c.get(ctx, endpointInfo, url.Values{"sitename": {site}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns the files under dir. An empty dir lists the whole site and
// sends no path parameter at all.
func (c *Client) List(ctx context.Context, dir string) (*ListResponse, error) {
	query := url.Values{}
	if dir != "" {
		query.Set("path", dir)
	}

	var result ListResponse
	if err := c.get(ctx, endpointList, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upload sends every file in localPaths in one multipart request. Each file
// is stored remotely under its root-relative path. If any file is missing,
// nothing is sent and the error wraps ErrFileNotFound.
func (c *Client) Upload(ctx context.Context, localPaths []string) (*Response, error) {
	var opened []afero.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	seen := make(map[string]bool, len(localPaths))
	parts := make([]filePart, 0, len(localPaths))
	for _, p := range localPaths {
		remote, err := c.RemotePath(p)
		if err != nil {
			return nil, err
		}
		if seen[remote] {
			continue
		}
		seen[remote] = true

		f, err := c.openLocal(remote)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", p, err)
		}
		opened = append(opened, f)

		parts = append(parts, filePart{
			Field:    remote,
			Filename: path.Base(remote),
			Reader:   f,
		})
	}

	c.logger.Infof("Uploading %d file(s) to %s", len(parts), c.site)

	var result Response
	if err := c.call(ctx, http.MethodPost, endpointUpload, callOptions{files: parts}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes the given files from the site in one request.
func (c *Client) Delete(ctx context.Context, paths []string) (*Response, error) {
	form := url.Values{}
	for _, p := range paths {
		remote, err := c.RemotePath(p)
		if err != nil {
			return nil, err
		}
		form.Add("filenames[]", remote)
	}

	c.logger.Infof("Deleting %d file(s) from %s", len(form["filenames[]"]), c.site)

	var result Response
	if err := c.call(ctx, http.MethodPost, endpointDelete, callOptions{form: form}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Download streams the published copy of remotePath into w.
func (c *Client) Download(ctx context.Context, remotePath string, w io.Writer) error {
	remote, err := RelPath("", strings.TrimPrefix(remotePath, "/"))
	if err != nil {
		return err
	}
	rawURL := c.siteURL + escapePath(remote)

	c.logger.WithField("path", remote).Debug("neocities download")

	return c.pacer.Do(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			DisableAutoReadResponse().
			Get(rawURL)
		if err != nil {
			return &TransportError{Endpoint: rawURL, Err: err}
		}
		defer resp.Body.Close()

		if resp.GetStatusCode() != http.StatusOK {
			return &TransportError{Endpoint: rawURL, Status: resp.GetStatusCode(), Err: errors.New(resp.Status)}
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return &TransportError{Endpoint: rawURL, Status: resp.GetStatusCode(), Err: err}
		}
		return nil
	})
}

// FetchKey retrieves the API key of an account using HTTP basic auth. It is
// not bound to a site and never sends a bearer token.
func FetchKey(ctx context.Context, apiURL, username, password string) (string, error) {
	base := withSlash(orDefault(apiURL, DefaultAPIURL))

	var result KeyResponse
	opts := callOptions{user: username, password: password}
	if err := send(ctx, newHTTPClient(0), http.MethodGet, endpointKey, base+endpointKey, opts, &result); err != nil {
		return "", err
	}
	if err := result.Err(); err != nil {
		return "", err
	}
	return result.APIKey, nil
}

func (c *Client) openLocal(remote string) (afero.File, error) {
	local := filepath.Join(c.root, filepath.FromSlash(remote))

	info, err := c.fs.Stat(local)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, local)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", local)
	}
	return c.fs.Open(local)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

func loggerOrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
