package plaintext

import (
	"strings"

	"golang.org/x/net/html"
)

// Converter flattens HTML to plain text. Block-level boundaries become
// newlines; everything that is not text is dropped.
type Converter struct {
	skip func(*html.Node) bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithSkip drops every element for which fn returns true, children included.
func WithSkip(fn func(*html.Node) bool) Option {
	return func(c *Converter) {
		c.skip = fn
	}
}

// NewConverter creates a new HTML to text converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "tr": true, "table": true, "hr": true,
	"section": true, "article": true, "header": true, "footer": true, "aside": true,
	"dl": true, "dt": true, "dd": true, "figure": true, "details": true, "summary": true,
}

var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"img": true, "svg": true, "iframe": true, "video": true, "audio": true,
	"button": true, "input": true, "select": true, "textarea": true,
}

// Convert flattens an HTML node to text
func (c *Converter) Convert(node *html.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	c.convertNode(&b, node)
	return normalize(b.String())
}

// ConvertHTMLString flattens an HTML string to text
func (c *Converter) ConvertHTMLString(htmlStr string) string {
	if strings.TrimSpace(htmlStr) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	if body := findBody(doc); body != nil {
		return c.Convert(body)
	}
	return c.Convert(doc)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findBody(child); found != nil {
			return found
		}
	}
	return nil
}

func (c *Converter) convertNode(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(node.Data)
	case html.ElementNode:
		c.convertElement(b, node)
	case html.DocumentNode:
		c.convertChildren(b, node)
	}
}

func (c *Converter) convertElement(b *strings.Builder, node *html.Node) {
	if c.skip != nil && c.skip(node) {
		return
	}
	tag := strings.ToLower(node.Data)
	if droppedTags[tag] {
		return
	}
	if tag == "br" {
		b.WriteString("\n")
		return
	}

	block := blockTags[tag]
	if block {
		b.WriteString("\n")
	}
	c.convertChildren(b, node)
	if block {
		b.WriteString("\n")
	}
}

func (c *Converter) convertChildren(b *strings.Builder, node *html.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		c.convertNode(b, child)
	}
}

// normalize collapses runs of whitespace inside each line and drops blank lines.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// HasClass reports whether an element node carries the given CSS class.
func HasClass(node *html.Node, class string) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for _, attr := range node.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// ConvertHTMLString is a convenience function that flattens an HTML string
func ConvertHTMLString(htmlStr string) string {
	return NewConverter().ConvertHTMLString(htmlStr)
}

// ConvertNode is a convenience function that flattens an HTML node
func ConvertNode(node *html.Node) string {
	return NewConverter().Convert(node)
}
