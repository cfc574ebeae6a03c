package fetch

import "testing"

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs",
			in:   "<p>First para.</p><p>Second <b>bold</b> para.</p>",
			want: "First para.\n\nSecond bold para.",
		},
		{
			name: "whitespace collapsed",
			in:   "<p>  lots \n\t of   space  </p>",
			want: "lots of space",
		},
		{
			name: "headings and lists",
			in:   "<h2>Title</h2><ul><li>one</li><li>two</li></ul>",
			want: "Title\n\none\n\ntwo",
		},
		{
			name: "images scripts and comments dropped",
			in:   `<p>Text<img src="a.png" alt="ALT"></p><script>var x = 1;</script><!-- note --><style>p{}</style>`,
			want: "Text",
		},
		{
			name: "table rows kept as text",
			in:   "<table><tr><th>Name</th><th>Value</th></tr><tr><td>a</td><td>1</td></tr></table>",
			want: "Name | Value\n\na | 1",
		},
		{
			name: "line break inside paragraph",
			in:   "<p>line one<br>line two</p>",
			want: "line one\nline two",
		},
		{
			name: "pre keeps indentation",
			in:   "<pre>func main() {\n\n    run()\n}</pre>",
			want: "func main() {\n    run()\n}",
		},
		{
			name: "nested divs",
			in:   "<div><div>inner</div>tail</div>",
			want: "inner\n\ntail",
		},
		{
			name: "empty",
			in:   "   ",
			want: "",
		},
		{
			name: "only media",
			in:   `<figure><img src="x.jpg"></figure>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.in); got != tt.want {
				t.Errorf("HTMLToText(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanByline(t *testing.T) {
	tests := map[string]string{
		"By Jane Doe":   "Jane Doe",
		"by  Jane":      "Jane",
		"Jane":          "Jane",
		"Bye Bye Birdy": "Bye Bye Birdy",
		"":              "",
	}
	for in, want := range tests {
		if got := cleanByline(in); got != want {
			t.Errorf("cleanByline(%q) = %q, want %q", in, got, want)
		}
	}
}
