package blob

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extAliases folds equivalent spellings onto one canonical extension.
var extAliases = map[string]string{
	"jpeg": "jpg",
	"ogv":  "ogg",
	"oga":  "ogg",
	"ogx":  "ogg",
}

func canonicalExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if alias, ok := extAliases[ext]; ok {
		return alias
	}
	return ext
}

// SniffExt returns the canonical extension for the detected content type,
// or "" when the content is not recognised.
func SniffExt(data []byte) string {
	return canonicalExt(mimetype.Detect(data).Extension())
}

// MatchesExt reports whether the bytes look like the declared extension. The
// detected type and each of its parents are tried, so a declared "ogg" video
// matches content detected as video/ogg.
func MatchesExt(declared string, data []byte) bool {
	want := canonicalExt(declared)
	if want == "" {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if canonicalExt(m.Extension()) == want {
			return true
		}
	}
	return false
}

// IsImage reports whether the bytes are an image the site can display.
func IsImage(data []byte) bool {
	m := mimetype.Detect(data)
	return m.Is("image/jpeg") || m.Is("image/png") || m.Is("image/gif") || m.Is("image/webp")
}
