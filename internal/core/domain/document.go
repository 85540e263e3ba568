package domain

import "time"

// SourceType identifies where corpus content comes from.
type SourceType string

// Available source types.
const (
	// SourceTypeWeb is a fetched web page.
	SourceTypeWeb SourceType = "web"

	// SourceTypeFilesystem is a local file or directory tree.
	SourceTypeFilesystem SourceType = "filesystem"

	// SourceTypeGitHub is a GitHub repository.
	SourceTypeGitHub SourceType = "github"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeWeb, SourceTypeFilesystem, SourceTypeGitHub:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// Description returns a human-readable description of the source type.
func (t SourceType) Description() string {
	switch t {
	case SourceTypeWeb:
		return "Web page"
	case SourceTypeFilesystem:
		return "Local files"
	case SourceTypeGitHub:
		return "GitHub repository"
	default:
		return unknownDescription
	}
}

// Document is a unit of ingested content before chunking.
type Document struct {
	// ID is the unique document identifier.
	ID string

	// SourceType records which connector produced the document.
	SourceType SourceType

	// URI is the document's canonical address: a URL, an absolute file
	// path, or an owner/repo/path triple. Unique within the corpus.
	URI string

	// Title is a display name for the document.
	Title string

	// Content is the full extracted text.
	Content string

	// FetchedAt is when the connector produced this version.
	FetchedAt time.Time
}

// Chunk is a retrievable slice of a document.
type Chunk struct {
	// ID is the unique chunk identifier.
	ID string

	// DocumentID links back to the owning document.
	DocumentID string

	// Ordinal is the chunk's position within the document, from zero.
	Ordinal int

	// StartIndex is the chunk's character offset in the document content.
	StartIndex int

	// Content is the chunk text.
	Content string
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// Source is the connector that ran.
	Source SourceType

	// Target is what was ingested (URL, path or repository).
	Target string

	// Documents is how many documents were stored.
	Documents int

	// Chunks is how many chunks were indexed.
	Chunks int

	// Embedded is how many chunks received vectors. Zero when the
	// embedding provider is unconfigured.
	Embedded int

	// Skipped counts inputs ignored (binary files, fetch failures).
	Skipped int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}
