package step

import (
	"mime"
	"path"
	"strings"
)

// guessMediaType maps a file name to a MIME type by extension, without
// parameters. Returns "" when the extension is unknown.
func guessMediaType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return ""
	}
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

// mediaTypeOrDefault guesses from name and falls back to
// application/octet-stream.
func mediaTypeOrDefault(name string) string {
	if mt := guessMediaType(name); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
