package interfaces

import (
	"context"

	"github.com/m-mizutani/hangar/pkg/domain/model"
)

// TransferHost is the runtime that actually moves bytes. Download only asks the host to start;
// the transfer is announced later through the OnWillDownload listener, keyed by URL.
type TransferHost interface {
	Download(ctx context.Context, url string) error
	OnWillDownload(fn func(ctx context.Context, handle TransferHandle))
}

// TransferHandle represents one in-progress transfer created by the host
type TransferHandle interface {
	URL() string
	SetSavePath(path string)
	DisableSaveDialog()
	OnUpdated(fn func(received, total int64))
	OnDone(fn func(state model.TransferState, reason string))
}

// EventSink receives download notifications destined for the UI
type EventSink interface {
	Emit(ctx context.Context, event *model.DownloadEvent)
}

// EventSubscriber gives access to the stream of download events. evicted is closed when the
// subscriber fell too far behind and will receive nothing more.
type EventSubscriber interface {
	Subscribe() (events <-chan *model.DownloadEvent, evicted <-chan struct{}, cancel func())
}

// Extractor is a single extraction strategy (builtin zip, unrar, 7z)
type Extractor interface {
	Name() string
	Extract(ctx context.Context, archivePath, destDir string) error
}
