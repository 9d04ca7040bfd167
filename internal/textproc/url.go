package textproc

import (
	"path"
	"strings"
)

// expandDashedURLs rewrites URL-like tokens whose slug has at least
// minWords dash-separated words into those words, dropping scheme, host and
// query noise. Everything else is left for the tokenizer.
func expandDashedURLs(text string, minWords int) string {
	if !strings.Contains(text, "-") {
		return text
	}
	fields := strings.Fields(text)
	for i, f := range fields {
		if !looksLikeURL(f) {
			continue
		}
		slug := urlSlug(f)
		parts := nonEmpty(strings.Split(slug, "-"))
		if len(parts) >= minWords {
			fields[i] = strings.Join(parts, " ")
		}
	}
	return strings.Join(fields, " ")
}

func looksLikeURL(tok string) bool {
	lower := strings.ToLower(tok)
	if strings.Contains(lower, "://") || strings.HasPrefix(lower, "www.") {
		return true
	}
	slash := strings.Index(lower, "/")
	return slash > 0 && strings.Contains(lower[:slash], ".")
}

// urlSlug returns the last non-empty path segment without its extension.
func urlSlug(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	u = strings.TrimRight(u, "/")
	slug := u
	if i := strings.LastIndex(u, "/"); i >= 0 {
		slug = u[i+1:]
	}
	if ext := path.Ext(slug); !strings.Contains(ext, "-") {
		slug = strings.TrimSuffix(slug, ext)
	}
	return slug
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
