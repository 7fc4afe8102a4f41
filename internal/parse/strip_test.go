package parse

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"tags removed", "<p>hello <b>world</b></p>", "hello world"},
		{"script dropped", "before<script>var x = 1;</script>after", "before after"},
		{"style dropped", "<style>.a{color:red}</style>visible", "visible"},
		{"entities decoded", "a &amp; b &lt;c&gt;", "a & b <c>"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"unclosed tag tolerated", "<p>open", "open"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Fatalf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUnwrapCDATA(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<![CDATA[wrapped]]>", "wrapped"},
		{"  <![CDATA[ spaced ]]>  ", "spaced"},
		{"plain", "plain"},
		{"<![CDATA[unterminated", "<![CDATA[unterminated"},
	}
	for _, tt := range tests {
		if got := UnwrapCDATA(tt.in); got != tt.want {
			t.Fatalf("UnwrapCDATA(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
