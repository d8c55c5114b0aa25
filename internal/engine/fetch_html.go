package engine

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// invisible elements whose text never reaches the reader.
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// isMarkup reports whether a Content-Type header names something we can parse as HTML.
// A missing header is treated as HTML.
func isMarkup(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return true
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.Contains(ct, "html") || strings.HasSuffix(ct, "xml") || strings.HasPrefix(ct, "text/")
}

// ExtractPageText returns the page title and its visible text. When the page has
// a <main> element only its text is used, otherwise the whole document's.
// Whitespace inside text nodes is collapsed, empty nodes dropped, the rest joined by single spaces.
func ExtractPageText(body []byte, contentType string) (title, text string, err error) {
	if !isMarkup(contentType) {
		return "", "", &Error{Kind: KindParse, Stage: "extract", Msg: "unsupported content type " + contentType}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", &Error{Kind: KindParse, Stage: "extract", Err: err}
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
		title = strings.TrimSpace(title)
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	for _, n := range root.Nodes {
		parts = visibleText(n, parts)
	}
	return title, strings.Join(parts, " "), nil
}

func visibleText(n *html.Node, parts []string) []string {
	switch n.Type {
	case html.ElementNode:
		if invisible[n.DataAtom] {
			return parts
		}
	case html.TextNode:
		if fields := strings.Fields(n.Data); len(fields) > 0 {
			parts = append(parts, strings.Join(fields, " "))
		}
		return parts
	case html.CommentNode, html.DoctypeNode:
		return parts
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = visibleText(c, parts)
	}
	return parts
}
