package webcache

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
)

//go:embed offline.html
var offlinePage []byte

// maxCacheableBody bounds what a single cache entry may hold.
const maxCacheableBody = 8 << 20

// Proxy is an http.RoundTripper that answers requests from the versioned
// local cache. Assets named by the active manifest are cache-first and never
// revalidated within a version; document paths are network-first with the
// cached copy as fallback and the embedded offline page as last resort.
// Anything that is not an idempotent read passes straight through.
type Proxy struct {
	next http.RoundTripper
	repo *SQLiteRepository
	log  logging.Logger

	mu       sync.RWMutex
	version  string
	assets   map[string]struct{}
	document map[string]struct{}
}

type ProxyOption func(*Proxy)

// WithDocumentPaths overrides which paths are treated as the app entry
// document. The default is "/" and "/index.html".
func WithDocumentPaths(paths ...string) ProxyOption {
	return func(p *Proxy) {
		p.document = make(map[string]struct{}, len(paths))
		for _, d := range paths {
			p.document[d] = struct{}{}
		}
	}
}

func NewProxy(next http.RoundTripper, repo *SQLiteRepository, log logging.Logger, opts ...ProxyOption) *Proxy {
	if next == nil {
		next = http.DefaultTransport
	}
	p := &Proxy{
		next:     next,
		repo:     repo,
		log:      log,
		assets:   map[string]struct{}{},
		document: map[string]struct{}{"/": {}, "/index.html": {}},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resume restores the version marker of a previous run so cached entries
// survive a restart without re-activation.
func (p *Proxy) Resume(ctx context.Context, m *Manifest) error {
	current, err := p.repo.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current != m.Version {
		return p.Activate(ctx, m)
	}
	p.mu.Lock()
	p.version = m.Version
	p.assets = m.assetSet()
	p.mu.Unlock()
	return nil
}

// Activate makes m the one current asset generation: the version marker is
// updated and every entry of any prior version is deleted, atomically.
// Activations are serialized; re-activating the current version keeps its
// entries.
func (p *Proxy) Activate(ctx context.Context, m *Manifest) error {
	if err := m.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.repo.Activate(ctx, m.Version); err != nil {
		return fmt.Errorf("failed to activate manifest %s: %w", m.Version, err)
	}
	p.version = m.Version
	p.assets = m.assetSet()
	p.log.Info(ctx, "cache manifest activated", "version", m.Version, "assets", len(m.Assets))
	return nil
}

// Version returns the active manifest version, or "" before activation.
func (p *Proxy) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

func (p *Proxy) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return p.next.RoundTrip(req)
	}

	p.mu.RLock()
	version := p.version
	_, isAsset := p.assets[req.URL.Path]
	_, isDocument := p.document[req.URL.Path]
	p.mu.RUnlock()

	switch {
	case version == "":
		return p.next.RoundTrip(req)
	case isAsset:
		return p.serveAsset(req, version)
	case isDocument:
		return p.serveDocument(req, version)
	default:
		return p.next.RoundTrip(req)
	}
}

// serveAsset is cache-first: within a manifest version an asset is
// immutable, so a hit never touches the network.
func (p *Proxy) serveAsset(req *http.Request, version string) (*http.Response, error) {
	e, err := p.repo.Get(req.Context(), version, req.URL.Path)
	if err == nil {
		return cachedResponse(req, e), nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		p.log.Warn(req.Context(), "cache lookup failed", "path", req.URL.Path, "error", err)
	}

	resp, err := p.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	return p.populate(req, version, resp), nil
}

// serveDocument is network-first; a dead network falls back to the cached
// copy, and failing that to the embedded offline page.
func (p *Proxy) serveDocument(req *http.Request, version string) (*http.Response, error) {
	resp, err := p.next.RoundTrip(req)
	if err == nil {
		return p.populate(req, version, resp), nil
	}

	e, cerr := p.repo.Get(req.Context(), version, req.URL.Path)
	if cerr == nil {
		p.log.Info(req.Context(), "serving cached document", "path", req.URL.Path, "error", err)
		return cachedResponse(req, e), nil
	}

	p.log.Warn(req.Context(), "serving offline page", "path", req.URL.Path, "error", err)
	return offlineResponse(req), nil
}

// populate copies a successful GET response body into the cache. A
// population failure is logged and the original response still flows back
// to the caller untouched.
func (p *Proxy) populate(req *http.Request, version string, resp *http.Response) *http.Response {
	if req.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return resp
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheableBody+1))
	_ = resp.Body.Close()
	if err != nil {
		p.log.Warn(req.Context(), "cache population failed", "path", req.URL.Path, "error", err)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) > maxCacheableBody {
		p.log.Warn(req.Context(), "response too large to cache", "path", req.URL.Path)
		return resp
	}

	e := &Entry{
		Version:     version,
		Path:        req.URL.Path,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}
	if err := p.repo.Put(req.Context(), e); err != nil {
		p.log.Warn(req.Context(), "cache population failed", "path", req.URL.Path, "error", err)
	}
	return resp
}

func cachedResponse(req *http.Request, e *Entry) *http.Response {
	body := e.Body
	if req.Method == http.MethodHead {
		body = nil
	}
	h := http.Header{}
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	h.Set("X-Cache", "hit")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func offlineResponse(req *http.Request) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Cache", "offline-fallback")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(offlinePage)),
		ContentLength: int64(len(offlinePage)),
		Request:       req,
	}
}
