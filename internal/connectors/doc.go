// Package connectors holds the document loaders and the filtering rules
// they share. Each subpackage implements the Loader port for one source
// type: web fetches a single page, filesystem walks a directory tree,
// github pulls every text file from a repository's default branch.
//
// Loaders stream documents over a channel and report per-document
// failures (an unreadable file, a skipped binary) on a separate error
// channel so one bad input never aborts a run.
package connectors
