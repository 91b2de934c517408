package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/utils/async"
)

const (
	// DefaultProgressInterval is the minimum delay between two progress ticks
	DefaultProgressInterval = 200 * time.Millisecond
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "hangar"
)

// HTTPHost fetches URLs with net/http and reports them through TransferHandle callbacks
type HTTPHost struct {
	client    *http.Client
	userAgent string
	interval  time.Duration

	// transfers outlive the request that started them; Close stops them all
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	listener func(ctx context.Context, handle interfaces.TransferHandle)
}

// Option configures HTTPHost
type Option func(*HTTPHost)

// WithHTTPClient sets the HTTP client used for transfers
func WithHTTPClient(client *http.Client) Option {
	return func(h *HTTPHost) {
		if client != nil {
			h.client = client
		}
	}
}

// WithProgressInterval sets the minimum delay between progress ticks
func WithProgressInterval(interval time.Duration) Option {
	return func(h *HTTPHost) {
		h.interval = interval
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(h *HTTPHost) {
		h.userAgent = ua
	}
}

// NewHTTPHost creates a transfer host
func NewHTTPHost(opts ...Option) *HTTPHost {
	ctx, cancel := context.WithCancel(context.Background())
	h := &HTTPHost{
		client:    &http.Client{},
		userAgent: DefaultUserAgent,
		interval:  DefaultProgressInterval,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnWillDownload registers the listener notified when a transfer is created
func (h *HTTPHost) OnWillDownload(fn func(ctx context.Context, handle interfaces.TransferHandle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = fn
}

// Close interrupts every running transfer
func (h *HTTPHost) Close() {
	h.cancel()
}

// Download starts fetching url in the background. Cancelling ctx does not stop the transfer.
func (h *HTTPHost) Download(ctx context.Context, url string) error {
	if h.ctx.Err() != nil {
		return goerr.New("transfer host is closed", goerr.T(types.ErrTagTransferFailed))
	}

	h.mu.RLock()
	listener := h.listener
	h.mu.RUnlock()
	if listener == nil {
		return goerr.New("no transfer listener registered", goerr.T(types.ErrTagTransferFailed))
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build request", goerr.T(types.ErrTagInvalidRequest), goerr.V("url", url))
	}
	req.Header.Set("User-Agent", h.userAgent)

	hd := &handle{url: url}

	async.Dispatch(ctx, func(bgCtx context.Context) error {
		// The listener must see the handle before any byte moves.
		listener(bgCtx, hd)

		runCtx, stop := context.WithCancel(bgCtx)
		defer stop()
		unregister := context.AfterFunc(h.ctx, stop)
		defer unregister()

		h.run(runCtx, req.WithContext(runCtx), hd)
		return nil
	})
	return nil
}

func (h *HTTPHost) run(ctx context.Context, req *http.Request, hd *handle) {
	logger := ctxlog.From(ctx)

	savePath := hd.savePathValue()
	if savePath == "" {
		hd.done(model.TransferCancelled, "no save path set")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		hd.done(model.TransferInterrupted, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		hd.done(model.TransferInterrupted, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		return
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		hd.done(model.TransferInterrupted, err.Error())
		return
	}

	// unique temp name: two downloads may target the same save path
	out, err := os.CreateTemp(filepath.Dir(savePath), filepath.Base(savePath)+".*.part")
	if err != nil {
		hd.done(model.TransferInterrupted, err.Error())
		return
	}
	tmpPath := out.Name()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	reader := &progressReader{
		r:        resp.Body,
		total:    total,
		interval: h.interval,
		report:   hd.updated,
	}

	_, copyErr := io.Copy(out, reader)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		reason := "transfer failed"
		switch {
		case ctx.Err() != nil:
			reason = ctx.Err().Error()
		case copyErr != nil:
			reason = copyErr.Error()
		case closeErr != nil:
			reason = closeErr.Error()
		}
		hd.done(model.TransferInterrupted, reason)
		return
	}
	reader.flush()

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		logger.Warn("Failed to set file mode", "path", tmpPath, "error", err)
	}
	if err := os.Rename(tmpPath, savePath); err != nil {
		_ = os.Remove(tmpPath)
		hd.done(model.TransferInterrupted, err.Error())
		return
	}

	logger.Debug("Transfer finished", "url", hd.url, "path", savePath, "bytes", reader.read)
	hd.done(model.TransferCompleted, "")
}

// handle is the TransferHandle of one HTTP transfer
type handle struct {
	url string

	mu        sync.Mutex
	savePath  string
	onUpdated func(received, total int64)
	onDone    func(state model.TransferState, reason string)
}

func (h *handle) URL() string { return h.url }

func (h *handle) SetSavePath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.savePath = path
}

// DisableSaveDialog is a no-op: there is never an interactive prompt
func (h *handle) DisableSaveDialog() {}

func (h *handle) OnUpdated(fn func(received, total int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUpdated = fn
}

func (h *handle) OnDone(fn func(state model.TransferState, reason string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDone = fn
}

func (h *handle) savePathValue() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.savePath
}

func (h *handle) updated(received, total int64) {
	h.mu.Lock()
	fn := h.onUpdated
	h.mu.Unlock()
	if fn != nil {
		fn(received, total)
	}
}

func (h *handle) done(state model.TransferState, reason string) {
	h.mu.Lock()
	fn := h.onDone
	h.mu.Unlock()
	if fn != nil {
		fn(state, reason)
	}
}

// progressReader reports read bytes at most once per interval
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	interval time.Duration
	last     time.Time
	reported int64
	report   func(received, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if now := time.Now(); now.Sub(p.last) >= p.interval {
			p.last = now
			p.reported = p.read
			p.report(p.read, p.total)
		}
	}
	return n, err
}

// flush reports the final byte count if the last read was throttled away
func (p *progressReader) flush() {
	if p.reported != p.read {
		p.reported = p.read
		p.report(p.read, p.total)
	}
}
