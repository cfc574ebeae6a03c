package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"rmbot/internal/domain"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extract pulls the readable article out of an HTML document. Missing
// title or author fall back to domain.DefaultTitle and domain.DefaultAuthor;
// a page with no readable text is an error matching domain.ErrExtraction.
func Extract(body []byte, pageURL *url.URL) (*domain.Article, error) {
	if pageURL == nil {
		pageURL = &url.URL{}
	}

	parsed, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, domain.Errorf(domain.ErrExtraction, "failed to extract article content: %v", err)
	}

	text := HTMLToText(parsed.Content)
	if text == "" {
		text = normalizePlain(parsed.TextContent)
	}
	if text == "" {
		return nil, domain.Errorf(domain.ErrExtraction, "failed to extract article content: no readable text on page")
	}

	// A second, lenient parse feeds the metadata fallbacks.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		doc = nil
	}

	return &domain.Article{
		Title:    firstNonEmpty(parsed.Title, metaContent(doc, "og:title", "twitter:title"), docTitle(doc), domain.DefaultTitle),
		Author:   firstNonEmpty(cleanByline(parsed.Byline), cleanByline(metaContent(doc, "author", "article:author", "dc.creator")), domain.DefaultAuthor),
		Body:     text,
		SiteName: firstNonEmpty(parsed.SiteName, metaContent(doc, "og:site_name"), pageURL.Hostname()),
	}, nil
}

// metaContent returns the first non-empty <meta> content whose name or
// property matches one of keys, case-insensitively.
func metaContent(doc *goquery.Document, keys ...string) string {
	if doc == nil {
		return ""
	}
	var found string
	for _, key := range keys {
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name, _ := s.Attr("name")
			if name == "" {
				name, _ = s.Attr("property")
			}
			if !strings.EqualFold(strings.TrimSpace(name), key) {
				return true
			}
			content, _ := s.Attr("content")
			found = strings.TrimSpace(content)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func docTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return collapseSpaces(doc.Find("head title").First().Text())
}

// cleanByline strips a leading "By" so the chapter doesn't read "By By Jane".
func cleanByline(s string) string {
	s = collapseSpaces(s)
	if len(s) > 3 && strings.EqualFold(s[:3], "by ") {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
