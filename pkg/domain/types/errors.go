package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classifying failures of the download and extraction pipeline
var (
	ErrTagNotFound           = goerr.NewTag("not_found")
	ErrTagNotAFile           = goerr.NewTag("not_a_file")
	ErrTagToolUnavailable    = goerr.NewTag("tool_unavailable")
	ErrTagExtractionFailed   = goerr.NewTag("extraction_failed")
	ErrTagTransferFailed     = goerr.NewTag("transfer_failed")
	ErrTagCatalogFetchFailed = goerr.NewTag("catalog_fetch_failed")
	ErrTagDuplicateDownload  = goerr.NewTag("duplicate_download")
	ErrTagInvalidRequest     = goerr.NewTag("invalid_request")
)
