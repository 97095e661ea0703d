package plaintext

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestConverter_ConvertHTMLString(t *testing.T) {
	converter := NewConverter()

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "empty string",
			html:     "",
			expected: "",
		},
		{
			name:     "whitespace only",
			html:     "   \n\t  ",
			expected: "",
		},
		{
			name:     "simple text",
			html:     "Hello World",
			expected: "Hello World",
		},
		{
			name:     "paragraphs become lines",
			html:     "<p>First</p><p>Second</p>",
			expected: "First\nSecond",
		},
		{
			name:     "line breaks",
			html:     "one<br>two<br/>three",
			expected: "one\ntwo\nthree",
		},
		{
			name:     "inline markup is flattened",
			html:     "I <b>really</b> <i>agree</i> with <a href=\"/x\">this</a>",
			expected: "I really agree with this",
		},
		{
			name:     "whitespace collapsed",
			html:     "<div>  lots   of\t space  </div>",
			expected: "lots of space",
		},
		{
			name:     "list items",
			html:     "<ul><li>alpha</li><li>beta</li></ul>",
			expected: "alpha\nbeta",
		},
		{
			name:     "scripts and images dropped",
			html:     "<p>text<script>var x = 1;</script><img src=\"a.png\" alt=\"smile\"></p>",
			expected: "text",
		},
		{
			name:     "blank lines removed",
			html:     "<div><p></p><p>kept</p><br><br></div>",
			expected: "kept",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := converter.ConvertHTMLString(tt.html)
			if result != tt.expected {
				t.Errorf("ConvertHTMLString(%q) = %q, want %q", tt.html, result, tt.expected)
			}
		})
	}
}

func TestConverter_WithSkip(t *testing.T) {
	converter := NewConverter(WithSkip(func(n *html.Node) bool {
		return n.Data == "blockquote" && HasClass(n, "bbCodeBlock--quote")
	}))

	input := `<div class="bbWrapper"><blockquote class="bbCodeBlock bbCodeBlock--quote" data-quote="alice"><div>quoted words</div></blockquote>My reply<blockquote>plain quote</blockquote></div>`
	got := converter.ConvertHTMLString(input)
	want := "My reply\nplain quote"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertNode(t *testing.T) {
	doc, err := html.Parse(strings.NewReader("<p>a</p><p>b</p>"))
	if err != nil {
		t.Fatal(err)
	}
	if got := ConvertNode(doc); got != "a\nb" {
		t.Errorf("ConvertNode = %q", got)
	}
	if got := ConvertNode(nil); got != "" {
		t.Errorf("ConvertNode(nil) = %q", got)
	}
}

func TestHasClass(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "class", Val: "a  b\tc"}}}
	for _, c := range []string{"a", "b", "c"} {
		if !HasClass(n, c) {
			t.Errorf("expected class %q", c)
		}
	}
	if HasClass(n, "d") {
		t.Error("unexpected class d")
	}
	if HasClass(nil, "a") {
		t.Error("nil node has no class")
	}
}
