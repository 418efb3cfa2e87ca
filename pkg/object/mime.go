package object

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMimeType is used when neither sniffing nor extension lookup
// produces a match, matching the "defaulted ... if absent" language of
// §3.
const DefaultMimeType = "application/octet-stream"

// extensionMimeTypes is the closed, extended MIME enumeration §3 refers to
// for extension-based defaulting. mimetype.Detect covers magic-byte
// sniffing; this table covers the common text/code extensions sniffing
// can't disambiguate.
var extensionMimeTypes = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".js":   "text/javascript",
	".ts":   "application/typescript",
	".md":   "text/markdown",
	".go":   "text/x-go",
	".py":   "text/x-python",
	".sh":   "application/x-sh",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".wasm": "application/wasm",
}

// DetectFromExtension returns the MIME type implied by a path's extension,
// or "" if the extension is not in the closed enumeration.
func DetectFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionMimeTypes[ext]
}

// Sniff detects a MIME type from the path extension, falling back to
// magic-byte detection on the content bytes, then to DefaultMimeType. It
// mirrors §3's "defaulted from path extension on write if absent" rule;
// ResolveMimeType prefers an explicit caller-supplied type over either.
func Sniff(path string, head []byte) string {
	if ext := DetectFromExtension(path); ext != "" {
		return ext
	}
	if len(head) > 0 {
		mt := mimetype.Detect(head)
		if mt != nil && mt.String() != "" {
			return strings.Split(mt.String(), ";")[0]
		}
	}
	return DefaultMimeType
}

// ResolveMimeType applies the §3 defaulting rule: an explicit type wins;
// otherwise sniff from content and path.
func ResolveMimeType(explicit, path string, head []byte) string {
	if explicit != "" {
		return explicit
	}
	return Sniff(path, head)
}
