package usecase

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/utils/errs"
)

// DefaultRetention is how long a terminal download stays queryable without acknowledgement
const DefaultRetention = 5 * time.Minute

type registration struct {
	req      model.DownloadRequest
	state    model.DownloadState
	progress model.DownloadProgress
	size     int64
	errMsg   string
	extract  *model.ExtractionStatus
	handle   interfaces.TransferHandle
	doneAt   time.Time
}

func (r *registration) status() *model.DownloadStatus {
	st := &model.DownloadStatus{
		Request:  r.req,
		State:    r.state,
		Progress: r.progress,
		Size:     r.size,
		Error:    r.errMsg,
	}
	if r.extract != nil {
		ex := *r.extract
		st.Extract = &ex
	}
	return st
}

// Downloader coordinates downloads between the caller, the transfer host and the UI event sink
type Downloader struct {
	host      interfaces.TransferHost
	sink      interfaces.EventSink
	archive   interfaces.ArchiveUseCase
	now       func() time.Time
	retention time.Duration

	mu       sync.Mutex
	live     map[string]*registration // download ID -> in-flight registration
	byURL    map[string][]string      // URL -> download IDs waiting for a transfer, oldest first
	finished map[string]*registration // download ID -> terminal registration awaiting acknowledgement
}

// DownloaderOption configures Downloader
type DownloaderOption func(*Downloader)

// WithArchive sets the archive use case used for auto-extraction
func WithArchive(archive interfaces.ArchiveUseCase) DownloaderOption {
	return func(d *Downloader) {
		d.archive = archive
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) DownloaderOption {
	return func(d *Downloader) {
		d.now = now
	}
}

// WithRetention sets how long terminal downloads are kept for status queries
func WithRetention(retention time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.retention = retention
	}
}

// NewDownloader creates a Downloader and subscribes it to the host's transfer announcements
func NewDownloader(host interfaces.TransferHost, sink interfaces.EventSink, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		host:      host,
		sink:      sink,
		now:       time.Now,
		retention: DefaultRetention,
		live:      make(map[string]*registration),
		byURL:     make(map[string][]string),
		finished:  make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(d)
	}

	host.OnWillDownload(d.handleWillDownload)
	return d
}

// Start registers req and asks the host to begin the transfer. The returned request carries the
// resolved ID and save path.
func (d *Downloader) Start(ctx context.Context, req *model.DownloadRequest) (*model.DownloadRequest, error) {
	logger := ctxlog.From(ctx)

	if req == nil {
		return nil, goerr.New("download request is nil", goerr.T(types.ErrTagInvalidRequest))
	}
	if err := validateDownloadRequest(req); err != nil {
		return nil, err
	}

	reg := &registration{
		req:   *req,
		state: model.DownloadRegistered,
	}
	if reg.req.ID == "" {
		reg.req.ID = uuid.NewString()
	}
	reg.req.Path = filepath.Join(reg.req.Destination, reg.req.FileName)
	reg.req.CreatedAt = d.now()

	if err := os.MkdirAll(reg.req.Destination, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create destination directory",
			goerr.T(types.ErrTagNotFound),
			goerr.V("destination", reg.req.Destination),
		)
	}

	d.mu.Lock()
	if _, exists := d.live[reg.req.ID]; exists {
		d.mu.Unlock()
		return nil, goerr.New("download is already in progress",
			goerr.T(types.ErrTagDuplicateDownload),
			goerr.V("id", reg.req.ID),
		)
	}
	// Registration must exist before the host starts: announcements arrive keyed by URL.
	delete(d.finished, reg.req.ID)
	d.live[reg.req.ID] = reg
	d.byURL[reg.req.URL] = append(d.byURL[reg.req.URL], reg.req.ID)
	result := reg.req
	d.mu.Unlock()

	logger.Info("Starting download",
		"id", result.ID,
		"url", result.URL,
		"path", result.Path,
		"auto_extract", result.AutoExtract,
	)

	if err := d.host.Download(ctx, result.URL); err != nil {
		d.mu.Lock()
		d.dropURL(result.URL, result.ID)
		d.mu.Unlock()
		d.fail(ctx, result.ID, fmt.Sprintf("failed to start transfer: %v", err))
		return &result, nil
	}

	return &result, nil
}

func validateDownloadRequest(req *model.DownloadRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return goerr.New("invalid download URL", goerr.T(types.ErrTagInvalidRequest), goerr.V("url", req.URL))
	}
	if req.FileName == "" || req.FileName != filepath.Base(req.FileName) || req.FileName == "." || req.FileName == ".." {
		return goerr.New("invalid file name", goerr.T(types.ErrTagInvalidRequest), goerr.V("file_name", req.FileName))
	}
	if strings.TrimSpace(req.Destination) == "" {
		return goerr.New("destination is required", goerr.T(types.ErrTagInvalidRequest))
	}
	return nil
}

// handleWillDownload binds a freshly created transfer to the oldest registration waiting on its URL
func (d *Downloader) handleWillDownload(ctx context.Context, handle interfaces.TransferHandle) {
	logger := ctxlog.From(ctx)
	u := handle.URL()

	d.mu.Lock()
	ids := d.byURL[u]
	if len(ids) == 0 {
		d.mu.Unlock()
		logger.Warn("Transfer for unregistered URL ignored", "url", u)
		return
	}
	id := ids[0]
	d.dropURL(u, id)

	reg, ok := d.live[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	reg.handle = handle
	reg.state = model.DownloadTransferring
	path := reg.req.Path
	started := reg.req.CreatedAt
	d.mu.Unlock()

	d.guard(ctx, id, func() {
		handle.SetSavePath(path)
		handle.DisableSaveDialog()

		handle.OnUpdated(func(received, total int64) {
			d.guard(ctx, id, func() {
				d.handleProgress(ctx, id, started, received, total)
			})
		})
		handle.OnDone(func(state model.TransferState, reason string) {
			d.guard(ctx, id, func() {
				d.handleDone(ctx, id, state, reason)
			})
		})

		logger.Debug("Transfer bound to download", "id", id, "url", u, "path", path)
	})
}

func (d *Downloader) handleProgress(ctx context.Context, id string, started time.Time, received, total int64) {
	elapsed := d.now().Sub(started)
	progress := model.DownloadProgress{
		ReceivedBytes: received,
		TotalBytes:    total,
		Elapsed:       elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		progress.Speed = float64(received) / secs
	}
	if total > 0 {
		progress.Percent = float64(received) * 100 / float64(total)
	}

	d.mu.Lock()
	reg, ok := d.live[id]
	if !ok || reg.state.IsTerminal() {
		d.mu.Unlock()
		return
	}
	reg.progress = progress
	fileName := reg.req.FileName
	d.mu.Unlock()

	d.sink.Emit(ctx, &model.DownloadEvent{
		Kind:       model.EventProgress,
		DownloadID: id,
		FileName:   fileName,
		Progress:   &progress,
		Timestamp:  d.now(),
	})
}

func (d *Downloader) handleDone(ctx context.Context, id string, state model.TransferState, reason string) {
	logger := ctxlog.From(ctx)

	d.mu.Lock()
	reg, ok := d.live[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	req := reg.req
	d.mu.Unlock()

	if state != model.TransferCompleted {
		if reason == "" {
			reason = string(state)
		}
		d.fail(ctx, id, reason)
		return
	}

	// The host may report completion before the file is really in place.
	info, err := os.Stat(req.Path)
	switch {
	case err != nil:
		d.fail(ctx, id, "file missing")
		return
	case info.IsDir():
		d.fail(ctx, id, "file missing")
		return
	case info.Size() == 0:
		d.fail(ctx, id, "file empty")
		return
	}

	if !d.finish(id, func(r *registration) {
		r.state = model.DownloadCompleted
		r.size = info.Size()
	}) {
		return
	}

	logger.Info("Download completed", "id", id, "path", req.Path, "size", info.Size())
	d.sink.Emit(ctx, &model.DownloadEvent{
		Kind:       model.EventCompleted,
		DownloadID: id,
		FileName:   req.FileName,
		Path:       req.Path,
		Size:       info.Size(),
		Timestamp:  d.now(),
	})

	if req.AutoExtract {
		d.autoExtract(ctx, req)
	}
}

// autoExtract extracts a completed download into <destination>/<file stem>. Its outcome is
// reported separately and never changes the download's completed state.
func (d *Downloader) autoExtract(ctx context.Context, req model.DownloadRequest) {
	logger := ctxlog.From(ctx)
	status := &model.ExtractionStatus{}

	if d.archive == nil {
		status.Status = model.ExtractionSkipped
	} else {
		stem := strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
		dest := filepath.Join(req.Destination, stem)

		result, err := d.archive.Extract(ctx, req.Path, dest)
		switch {
		case err != nil:
			logger.Warn("Auto-extraction failed", "id", req.ID, "error", err)
			status.Status = model.ExtractionFailed
			status.Error = err.Error()
		case result.Outcome == model.OutcomeExtracted:
			status.Status = model.ExtractionDone
			status.Destination = result.Destination
		case result.Outcome == model.OutcomeDegraded:
			status.Status = model.ExtractionDegraded
			status.Destination = result.Destination
		default:
			status.Status = model.ExtractionSkipped
		}
	}

	d.mu.Lock()
	if reg, ok := d.finished[req.ID]; ok {
		reg.extract = status
	}
	d.mu.Unlock()

	d.sink.Emit(ctx, &model.DownloadEvent{
		Kind:       model.EventExtraction,
		DownloadID: req.ID,
		FileName:   req.FileName,
		Path:       req.Path,
		Extraction: status,
		Timestamp:  d.now(),
	})
}

// fail moves a live download to failed and emits the failure event
func (d *Downloader) fail(ctx context.Context, id, reason string) {
	var fileName string
	if !d.finish(id, func(r *registration) {
		r.state = model.DownloadFailed
		r.errMsg = reason
		fileName = r.req.FileName
	}) {
		return
	}

	ctxlog.From(ctx).Warn("Download failed", "id", id, "reason", reason)
	d.sink.Emit(ctx, &model.DownloadEvent{
		Kind:       model.EventFailed,
		DownloadID: id,
		FileName:   fileName,
		Error:      reason,
		Timestamp:  d.now(),
	})
}

// finish applies the terminal transition and moves the registration out of the live maps.
// It returns false when the download is no longer live.
func (d *Downloader) finish(id string, apply func(r *registration)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	reg, ok := d.live[id]
	if !ok || reg.state.IsTerminal() {
		return false
	}
	apply(reg)
	reg.doneAt = d.now()
	reg.handle = nil

	delete(d.live, id)
	d.dropURL(reg.req.URL, id)
	d.finished[id] = reg
	return true
}

// dropURL removes id from the URL index. Caller holds d.mu.
func (d *Downloader) dropURL(u, id string) {
	ids := d.byURL[u]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(d.byURL, u)
	} else {
		d.byURL[u] = ids
	}
}

// guard runs fn and turns a panic into a failure of download id only
func (d *Downloader) guard(ctx context.Context, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			errs.Handle(ctx, goerr.New("panic in download handler",
				goerr.T(types.ErrTagTransferFailed),
				goerr.V("id", id),
				goerr.V("recover", r),
			))
			d.fail(ctx, id, fmt.Sprintf("internal error: %v", r))
		}
	}()
	fn()
}

// Status returns the current snapshot of download id
func (d *Downloader) Status(id string) (*model.DownloadStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if reg, ok := d.live[id]; ok {
		return reg.status(), true
	}
	if reg, ok := d.finished[id]; ok {
		return reg.status(), true
	}
	return nil, false
}

// List returns snapshots of all known downloads ordered by creation time
func (d *Downloader) List() []*model.DownloadStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]*model.DownloadStatus, 0, len(d.live)+len(d.finished))
	for _, reg := range d.live {
		list = append(list, reg.status())
	}
	for _, reg := range d.finished {
		list = append(list, reg.status())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Request.CreatedAt.Equal(list[j].Request.CreatedAt) {
			return list[i].Request.ID < list[j].Request.ID
		}
		return list[i].Request.CreatedAt.Before(list[j].Request.CreatedAt)
	})
	return list
}

// Active returns the number of downloads that have not reached a terminal state
func (d *Downloader) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Acknowledge drops a terminal download. Live downloads cannot be acknowledged.
func (d *Downloader) Acknowledge(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.finished[id]; !ok {
		return false
	}
	delete(d.finished, id)
	return true
}

// Prune drops terminal downloads older than the retention window and returns how many were removed
func (d *Downloader) Prune(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int
	for id, reg := range d.finished {
		if now.Sub(reg.doneAt) >= d.retention {
			delete(d.finished, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes expired terminal downloads every interval until ctx is done
func (d *Downloader) RunJanitor(ctx context.Context, interval time.Duration) {
	tm := time.NewTimer(interval)
	defer tm.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tm.C:
			if n := d.Prune(d.now()); n > 0 {
				ctxlog.From(ctx).Debug("Pruned finished downloads", "count", n)
			}
			tm.Reset(interval)
		}
	}
}
