package parse

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML removes markup from feed bodies: tags are dropped, script and
// style blocks are removed wholesale, entities are decoded, and whitespace is
// collapsed. Malformed markup is tolerated; the tokenizer simply emits what
// it can.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	var (
		b    strings.Builder
		z    = html.NewTokenizer(strings.NewReader(s))
		skip int // depth inside script/style
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return CollapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}

// CollapseWhitespace reduces any run of whitespace (including newlines) to a
// single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// UnwrapCDATA removes a CDATA wrapper if present and trims the result.
func UnwrapCDATA(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<![CDATA[") && strings.HasSuffix(s, "]]>") {
		s = s[len("<![CDATA[") : len(s)-len("]]>")]
	}
	return strings.TrimSpace(s)
}
