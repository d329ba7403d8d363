package neocities

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"
)

// filePart is one file of a multipart upload. Field is the root-relative
// remote path the API stores the file under.
type filePart struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// callOptions carries exactly what one request sends. Bearer and basic auth
// are mutually exclusive; basic auth wins when both are set.
type callOptions struct {
	bearer   string
	user     string
	password string
	query    url.Values
	form     url.Values
	files    []filePart
}

// newHTTPClient builds the req client shared by all calls of one Client.
// req applies its own default timeout, so zero is set explicitly.
func newHTTPClient(timeout time.Duration) *req.Client {
	return req.C().
		SetUserAgent(userAgent).
		SetTimeout(timeout)
}

// send issues a single request and decodes the JSON body into out. The HTTP
// status is not inspected: the API reports failures in the body, which the
// caller reads through Response.Err.
func send(ctx context.Context, hc *req.Client, method, endpoint, rawURL string, opts callOptions, out any) error {
	r := hc.R().SetContext(ctx)

	if opts.user != "" || opts.password != "" {
		r.SetBasicAuth(opts.user, opts.password)
	} else if opts.bearer != "" {
		r.SetBearerAuthToken(opts.bearer)
	}
	if len(opts.query) > 0 {
		r.SetQueryString(opts.query.Encode())
	}
	if len(opts.form) > 0 {
		r.SetFormDataFromValues(opts.form)
	}
	for _, part := range opts.files {
		r.SetFileReader(part.Field, part.Filename, part.Reader)
	}

	resp, err := r.Send(method, rawURL)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	if err := resp.Unmarshal(out); err != nil {
		return &TransportError{Endpoint: endpoint, Status: resp.GetStatusCode(), Err: err}
	}
	return nil
}

// call runs one authenticated API request through the client's pacer.
func (c *Client) call(ctx context.Context, method, endpoint string, opts callOptions, out any) error {
	opts.bearer = c.apiKey
	rawURL := c.apiURL + endpoint

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("neocities request")

	return c.pacer.Do(ctx, func() error {
		return send(ctx, c.http, method, endpoint, rawURL, opts, out)
	})
}

// get is a convenience wrapper for query-only calls.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.call(ctx, http.MethodGet, endpoint, callOptions{query: query}, out)
}
