// Package epub packages an extracted article as a single-chapter EPUB.
package epub

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"rmbot/internal/domain"

	goepub "github.com/go-shiori/go-epub"
)

const (
	language    = "en"
	sectionFile = "content.xhtml"
	maxNameLen  = 80
)

var blankLines = regexp.MustCompile(`\n[ \t\r]*\n`)

// Packager implements domain.Packager.
type Packager struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{logger: logger}
}

// Package writes article to dest as an EPUB with one chapter. Title and
// author are used as given; callers supply any fallbacks.
func (p *Packager) Package(article *domain.Article, dest string) error {
	if article == nil {
		return domain.Errorf(domain.ErrPackaging, "nil article")
	}
	p.logger.Info("creating epub", "title", article.Title, "dest", dest)

	book, err := goepub.NewEpub(article.Title)
	if err != nil {
		return domain.Errorf(domain.ErrPackaging, "new book: %w", err)
	}
	book.SetAuthor(article.Author)
	book.SetLang(language)
	if article.SourceURL != "" {
		book.SetIdentifier(article.SourceURL)
	}

	if _, err := book.AddSection(ChapterHTML(article), article.Title, sectionFile, ""); err != nil {
		return domain.Errorf(domain.ErrPackaging, "add chapter: %w", err)
	}
	if err := book.Write(dest); err != nil {
		p.logger.Error("epub write failed", "dest", dest, "err", err)
		return domain.Errorf(domain.ErrPackaging, "write %s: %w", dest, err)
	}
	if err := navFirst(dest); err != nil {
		return domain.Errorf(domain.ErrPackaging, "order spine: %w", err)
	}

	p.logger.Info("created epub", "dest", dest)
	return nil
}

// ChapterHTML renders the chapter body: heading, byline, source link,
// rule, then one paragraph per block of body text. All text is escaped.
func ChapterHTML(article *domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(article.Title))
	fmt.Fprintf(&b, "<p><em>By %s</em></p>\n", html.EscapeString(article.Author))
	fmt.Fprintf(&b, "<p><a href=\"%s\">Original article</a></p>\n", html.EscapeString(article.SourceURL))
	b.WriteString("<hr/>\n")

	for _, para := range SplitParagraphs(article.Body) {
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", strings.Join(lines, "<br/>"))
	}
	return b.String()
}

// SplitParagraphs splits body on blank lines, trimming each paragraph and
// dropping empty ones.
func SplitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, part := range blankLines.Split(body, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FileName turns a title into a safe "<name>.epub" base name. rmapi uses
// the base name as the document name on the tablet.
func FileName(title string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == '-' || r == '_' || r == '.' || r == '(' || r == ')' || r == ',' || r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	name := strings.Trim(b.String(), " .")
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimRight(string(runes[:maxNameLen]), " .")
	}
	if name == "" {
		name = domain.DefaultTitle
	}
	return name + ".epub"
}
