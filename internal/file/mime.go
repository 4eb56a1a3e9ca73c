package file

import "mime"

// mimeOverrides corrects extensions the generic lookup table gets wrong.
// Client tooling depends on both entries: generic tables classify .ts as
// MPEG transport stream, and some platforms return nothing for .mp4.
var mimeOverrides = map[string]string{
	".ts":  "text/typescript",
	".mp4": "video/mp4",
}

// ContentType derives the download Content-Type from a stored extension
// (without the leading dot). Unknown extensions serve as a generic binary.
func ContentType(extension string) string {
	if extension == "" {
		return "application/octet-stream"
	}
	ext := "." + extension

	if ct, ok := mimeOverrides[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
