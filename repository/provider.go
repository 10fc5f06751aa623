// Package repository supplies raw TUF metadata and target bytes to a
// trust.Database: fetching over HTTP against a remote TUF repository,
// caching to and reading from local disk, and (for tests) forcing role
// writes to fail. None of it is cryptography -- every byte handed back
// here is still just raw input to the trust package's admission methods.
package repository

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Provider when the requested role or target
// does not exist at that location. It is not necessarily fatal: a missing
// delegated-targets file, for instance, just means that branch of the
// delegation graph has nothing new to offer.
var ErrNotFound = errors.New("repository: not found")

// Provider is the fetch capability a Fetcher is built on: given a role or
// target name, return its current raw bytes. Implementations never
// interpret or verify what they return; that is entirely trust.Database's
// job once the bytes reach it.
type Provider interface {
	// FetchRole returns the raw bytes currently published for a named role
	// (root, timestamp, snapshot, targets, or a delegated role's name).
	FetchRole(name string) ([]byte, error)
	// FetchTarget returns the raw bytes of a target artifact at path.
	FetchTarget(path string) ([]byte, error)
}

// HTTPProvider fetches roles and targets from a remote TUF repository over
// HTTP(S): a bounded GET per role, a hard response-size ceiling, and a
// short dedicated http.Client rather than the package-level default.
type HTTPProvider struct {
	BaseURL         *url.URL
	SkipTLSVerify   bool
	MaxResponseSize int64
	caPool          *x509.CertPool
}

const defaultMaxResponseSize = 32 << 20 // 32 MiB, generous for metadata and small targets

// NewHTTPProvider constructs an HTTPProvider rooted at baseURL.
func NewHTTPProvider(baseURL string) (*HTTPProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing repository base url")
	}
	return &HTTPProvider{BaseURL: u, MaxResponseSize: defaultMaxResponseSize}, nil
}

// UseCABundle pins the repository connection to a private certificate
// authority bundle (PEM-encoded) instead of the system trust store.
func (p *HTTPProvider) UseCABundle(pemBytes []byte) error {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return errors.New("failed to parse certificate authority bundle")
	}
	p.caPool = pool
	return nil
}

func (p *HTTPProvider) client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: p.SkipTLSVerify,
				RootCAs:            p.caPool,
			},
			TLSHandshakeTimeout: 5 * time.Second,
		},
		Timeout: 10 * time.Second,
	}
}

// FetchRole implements Provider.
func (p *HTTPProvider) FetchRole(name string) ([]byte, error) {
	return p.get(fmt.Sprintf("%s.json", name))
}

// FetchTarget implements Provider.
func (p *HTTPProvider) FetchTarget(path string) ([]byte, error) {
	return p.get("targets/" + path)
}

func (p *HTTPProvider) get(relPath string) ([]byte, error) {
	ref, err := url.Parse(relPath)
	if err != nil {
		return nil, errors.Wrap(err, "building repository path")
	}
	fullURL := p.BaseURL.ResolveReference(ref).String()

	resp, err := p.client().Get(fullURL)
	if err != nil {
		return nil, errors.Wrap(err, "fetching from repository")
	}
	defer resp.Body.Close()

	maxSize := p.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}
	limited := &io.LimitedReader{R: resp.Body, N: maxSize + 1}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("repository server returned %q", resp.Status)
	}

	var buf bytes.Buffer
	read, err := io.Copy(&buf, limited)
	if err != nil {
		return nil, errors.Wrap(err, "reading repository response")
	}
	if read > maxSize {
		return nil, errors.New("repository response exceeds maximum size")
	}
	return buf.Bytes(), nil
}
