package models

import "errors"

var (
	// ErrEmptyQuery is returned when a question has no text.
	ErrEmptyQuery = errors.New("query text is required")

	// ErrOwnerRequired is returned when an operation is missing the owner id.
	ErrOwnerRequired = errors.New("owner id is required")

	// ErrFileRequired is returned when an upload has no file name or no content.
	ErrFileRequired = errors.New("file is required")

	// ErrUnsupportedFormat is returned for files other than PDF and DOCX.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoExtractableText is returned when a document yields no text.
	ErrNoExtractableText = errors.New("document contains no readable text; possibly an image-based PDF")

	// ErrStatusChanged is returned when a document left the status an update expected,
	// for example because a rebuild reset it while it was being ingested.
	ErrStatusChanged = errors.New("document status changed")

	// ErrNotFound is returned when a document does not exist or belongs to another owner.
	ErrNotFound = errors.New("document not found")
)
