package model

import (
	"path/filepath"
	"strings"
)

// ArchiveKind is the archive format decided from a file extension
type ArchiveKind int

const (
	ArchiveUnsupported ArchiveKind = iota
	ArchiveZip
	ArchiveRar
	ArchiveSevenZip
)

// String returns the string representation of the archive kind
func (k ArchiveKind) String() string {
	switch k {
	case ArchiveZip:
		return "zip"
	case ArchiveRar:
		return "rar"
	case ArchiveSevenZip:
		return "7z"
	default:
		return "unsupported"
	}
}

// DetectArchiveKind determines the archive kind from the extension of path (case-insensitive)
func DetectArchiveKind(path string) ArchiveKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return ArchiveZip
	case ".rar":
		return ArchiveRar
	case ".7z":
		return ArchiveSevenZip
	default:
		return ArchiveUnsupported
	}
}

// ExtractionOutcome tells how an extraction call ended when it did not fail
type ExtractionOutcome string

const (
	// OutcomeExtracted means the archive was decompressed and the source removed
	OutcomeExtracted ExtractionOutcome = "extracted"
	// OutcomeDegraded means no tool could decompress the archive and it was copied as-is
	OutcomeDegraded ExtractionOutcome = "degraded"
	// OutcomeNotExtracted means the file is not a recognized archive and was left alone
	OutcomeNotExtracted ExtractionOutcome = "not_extracted"
)

// ExtractionResult is the result of a successful (or skipped) extraction
type ExtractionResult struct {
	Outcome     ExtractionOutcome `json:"outcome"`
	Kind        string            `json:"kind"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Tool        string            `json:"tool,omitempty"`
}
