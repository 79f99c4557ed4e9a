package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 60

// Slug lowercases value, strips diacritics, and joins alphanumeric runs with
// hyphens. Returns "mashup" when nothing usable remains.
func Slug(value string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		stripped = value
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	out := b.String()
	if len(out) > maxSlugLength {
		out = strings.TrimRight(truncateRunes(out, maxSlugLength), "-")
	}
	if out == "" {
		return "mashup"
	}
	return out
}

// ArtifactName returns "<slug>-mashup<ext>".
func ArtifactName(query, ext string) string {
	slug := Slug(query)
	if slug == "mashup" {
		return slug + ext
	}
	return slug + "-mashup" + ext
}

func truncateRunes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := 0
	for i := range value {
		if i > limit {
			break
		}
		cut = i
	}
	return value[:cut]
}
