package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"caption": true, "dd": true, "details": true, "div": true, "dl": true,
	"dt": true, "figcaption": true, "figure": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "section": true, "summary": true, "table": true,
	"tbody": true, "tfoot": true, "thead": true, "ul": true,
}

// Embedded media, scripts and form controls carry no article text.
var skipTags = map[string]bool{
	"audio": true, "button": true, "canvas": true, "embed": true,
	"form": true, "head": true, "iframe": true, "img": true, "input": true,
	"noscript": true, "object": true, "picture": true, "script": true,
	"select": true, "source": true, "style": true, "svg": true,
	"template": true, "textarea": true, "video": true,
}

// HTMLToText flattens an HTML fragment into plain-text paragraphs separated
// by a blank line. Each block element becomes its own paragraph, table
// rows become "cell | cell" lines, and <br> becomes a single newline.
func HTMLToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	w := &textWriter{}
	for _, n := range doc.Nodes {
		w.walk(n)
	}
	w.flush()
	return strings.Join(w.paras, "\n\n")
}

type textWriter struct {
	paras []string
	cur   strings.Builder
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// Source line breaks are plain whitespace; only <br> breaks a line.
		w.cur.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.DocumentNode:
		w.children(n)
		return
	case html.ElementNode:
	default:
		return // comments, doctype
	}

	tag := n.Data
	switch {
	case skipTags[tag]:
		return
	case tag == "br":
		w.cur.WriteString("\n")
		return
	case tag == "pre":
		w.flush()
		w.add(normalizePre(goquery.NewDocumentFromNode(n).Text()))
		return
	case tag == "tr":
		w.flush()
		w.add(tableRow(n))
		return
	}

	block := blockTags[tag]
	if block {
		w.flush()
	}
	w.children(n)
	if block {
		w.flush()
	}
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *textWriter) flush() {
	w.add(normalizePlain(w.cur.String()))
	w.cur.Reset()
}

func (w *textWriter) add(p string) {
	if p != "" {
		w.paras = append(w.paras, p)
	}
}

func tableRow(tr *html.Node) string {
	var cells []string
	goquery.NewDocumentFromNode(tr).Find("th, td").Each(func(_ int, s *goquery.Selection) {
		if c := collapseSpaces(s.Text()); c != "" {
			cells = append(cells, c)
		}
	})
	return strings.Join(cells, " | ")
}

// normalizePlain collapses runs of spaces and tabs, keeps single line
// breaks and drops empty lines.
func normalizePlain(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = collapseSpaces(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// normalizePre keeps indentation but drops blank lines, which would
// otherwise split a code block into several paragraphs.
func normalizePre(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
