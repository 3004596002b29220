// Package extract pulls image references and prompt text out of stored case
// HTML.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// ImageRef is one image found in case HTML, in document order.
type ImageRef struct {
	URL string
	Alt string
}

var sanitizer = bluemonday.UGCPolicy()

// Images returns the image sources referenced by the case HTML, resolved
// against baseURL and deduplicated in document order. Inline data URIs are
// skipped; they are decorative, not case photographs.
func Images(html, baseURL string) ([]ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse case html: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
	}

	seen := make(map[string]struct{})
	var refs []ImageRef
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved := src
		if base != nil {
			if parsed, err := url.Parse(src); err == nil {
				resolved = base.ResolveReference(parsed).String()
			}
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		refs = append(refs, ImageRef{
			URL: resolved,
			Alt: strings.TrimSpace(sel.AttrOr("alt", "")),
		})
	})
	return refs, nil
}

// Summary sanitizes the case HTML and renders it as plain markdown text for
// the caption prompt, truncated to maxLen runes.
func Summary(html string, maxLen int) (string, error) {
	cleaned := sanitizer.Sanitize(html)
	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("convert case html: %w", err)
	}
	text := strings.TrimSpace(markdown)
	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return text, nil
}
