// Package fetch downloads registered documents and probes their URLs with a bounded timeout.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/utils"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 10 << 20 // 10 MiB
	userAgent       = "apiregistry-fetcher/1.0"
)

// Outcome is the result of fetching a document URL.
// Err is set when no HTTP response was obtained at all; Code is then zero.
type Outcome struct {
	Code int
	Body []byte
	Err  error
}

// Succeeded reports whether a response in the 2xx range was received.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Code >= 200 && o.Code <= 299
}

// CodePtr returns the response code, or nil when the request never got a response.
func (o Outcome) CodePtr() *int {
	if o.Err != nil {
		return nil
	}
	return domain.CodePtr(o.Code)
}

// Fetcher is the network boundary of the registry.
type Fetcher interface {
	// Fetch GETs url. Transport failures are reported in Outcome.Err, never as a panic.
	Fetch(ctx context.Context, url string) Outcome
	// Probe checks url liveness and returns the status code observed.
	Probe(ctx context.Context, url string) (int, error)
}

type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// New builds an HTTPFetcher. Zero options fall back to defaults.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: opts.Timeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConnsPerHost: 4,
		}
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("stopped after 5 redirects")
				}
				return nil
			},
		},
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
	}
}

// Fetch downloads url. Non-2xx responses are returned with their code and body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Outcome{Err: domain.Wrap(domain.KindUpstreamFetch, err, "invalid url")}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{Err: domain.Wrap(domain.KindUpstreamFetch, err, "request failed")}
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Outcome{Err: domain.Wrap(domain.KindUpstreamFetch, err, "reading body failed")}
	}
	if int64(len(body)) > f.maxBytes {
		return Outcome{Err: domain.Errorf(domain.KindUpstreamFetch, "document exceeds %d bytes", f.maxBytes)}
	}

	return Outcome{Code: resp.StatusCode, Body: body}
}

// Probe sends a HEAD request and falls back to GET when the server refuses HEAD.
func (f *HTTPFetcher) Probe(ctx context.Context, url string) (int, error) {
	code, err := f.probe(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		return f.probe(ctx, http.MethodGet, url)
	}
	return code, nil
}

func (f *HTTPFetcher) probe(ctx context.Context, method, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return 0, domain.Wrap(domain.KindUpstreamFetch, err, "invalid url")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, domain.Wrap(domain.KindUpstreamFetch, err, fmt.Sprintf("%s %s failed", method, url))
	}
	defer utils.Close(resp.Body)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
