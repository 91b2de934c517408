package model

import "time"

// DownloadRequest is a registered download, identified by a caller supplied ID
type DownloadRequest struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	Destination string    `json:"destination"`
	Path        string    `json:"path"`
	AutoExtract bool      `json:"auto_extract"`
	CreatedAt   time.Time `json:"created_at"`
}

// DownloadState is the lifecycle state of a download
type DownloadState string

const (
	DownloadRegistered   DownloadState = "registered"
	DownloadTransferring DownloadState = "transferring"
	DownloadCompleted    DownloadState = "completed"
	DownloadFailed       DownloadState = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s DownloadState) IsTerminal() bool {
	return s == DownloadCompleted || s == DownloadFailed
}

// TransferState is the terminal state reported by the transfer host
type TransferState string

const (
	TransferCompleted   TransferState = "completed"
	TransferInterrupted TransferState = "interrupted"
	TransferCancelled   TransferState = "cancelled"
)

// DownloadProgress is the latest progress of an active transfer. TotalBytes is 0 while unknown.
type DownloadProgress struct {
	ReceivedBytes int64         `json:"received_bytes"`
	TotalBytes    int64         `json:"total_bytes"`
	Elapsed       time.Duration `json:"elapsed"`
	Speed         float64       `json:"speed"` // bytes per second
	Percent       float64       `json:"percent"`
}

// DownloadStatus is a point-in-time snapshot of a download
type DownloadStatus struct {
	Request  DownloadRequest   `json:"request"`
	State    DownloadState     `json:"state"`
	Progress DownloadProgress  `json:"progress"`
	Size     int64             `json:"size,omitempty"`
	Error    string            `json:"error,omitempty"`
	Extract  *ExtractionStatus `json:"extract,omitempty"`
}

// DownloadEventKind is the kind of notification sent toward the UI
type DownloadEventKind string

const (
	EventProgress   DownloadEventKind = "progress"
	EventCompleted  DownloadEventKind = "completed"
	EventFailed     DownloadEventKind = "failed"
	EventExtraction DownloadEventKind = "extraction"
)

// ExtractionStatusKind is the status carried by an extraction event
type ExtractionStatusKind string

const (
	ExtractionDone     ExtractionStatusKind = "extracted"
	ExtractionDegraded ExtractionStatusKind = "degraded"
	ExtractionSkipped  ExtractionStatusKind = "skipped"
	ExtractionFailed   ExtractionStatusKind = "failed"
)

// ExtractionStatus reports the auto-extraction step of a completed download
type ExtractionStatus struct {
	Status      ExtractionStatusKind `json:"status"`
	Destination string               `json:"destination,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// DownloadEvent is emitted for every observable change of a download
type DownloadEvent struct {
	Kind       DownloadEventKind `json:"kind"`
	DownloadID string            `json:"download_id"`
	FileName   string            `json:"file_name"`
	Path       string            `json:"path,omitempty"`
	Size       int64             `json:"size,omitempty"`
	Error      string            `json:"error,omitempty"`
	Progress   *DownloadProgress `json:"progress,omitempty"`
	Extraction *ExtractionStatus `json:"extraction,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
