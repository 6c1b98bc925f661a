package crawl

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/R204570/LexAudit-Flow/internal/browser"
)

// Candidates filters links down to PDF documents whose text or href mentions
// a keyword. Hrefs are resolved against pageURL; each resolved URL appears
// once, in page order.
func Candidates(pageURL string, links []browser.Link, keywords []string) []browser.Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	fold := cases.Fold()
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			folded = append(folded, fold.String(k))
		}
	}

	seen := make(map[string]bool)
	var out []browser.Link
	for _, l := range links {
		if !mentions(fold.String(l.Text), folded) && !mentions(fold.String(l.Href), folded) {
			continue
		}
		abs, ok := resolve(base, l.Href)
		if !ok || !isPDF(abs) {
			continue
		}
		key := abs.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		l.URL = key
		out = append(out, l)
	}
	return out
}

func mentions(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	abs.Fragment = ""
	return abs, true
}

func isPDF(u *url.URL) bool {
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// FileName derives a safe local file name from the last path segment of
// rawURL, or document_<n>.pdf when there is none.
func FileName(rawURL string, n int) string {
	fallback := "document_" + strconv.Itoa(n) + ".pdf"
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := sanitize(path.Base(u.Path))
	if name == "" || strings.Trim(name, "._-") == "" {
		return fallback
	}
	return name
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
