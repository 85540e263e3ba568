package connectors

import (
	"path/filepath"
	"strings"
)

// MaxFileBytes is the largest file a loader will ingest. Anything bigger
// is skipped and reported on the error channel.
const MaxFileBytes = 1024 * 1024

// binaryExtensions lists extensions that never contain indexable text.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true,
}

// IsBinaryPath reports whether the file extension indicates a binary
// file. Extensionless files (Makefile, LICENSE) are treated as text.
func IsBinaryPath(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
