// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.quarry/.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with QUARRY_* overrides
//   - PromptStore: user-editable prompt templates with compiled-in defaults
//   - Watcher: fsnotify-based hot reload of both for long-running serve mode
package file
