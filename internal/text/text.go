// Package text provides shared text processing: word extraction for the
// in-memory search indices and rendering of the restricted HTML subset
// that NixOS option descriptions may contain.
package text

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// wordRe matches word characters; names like services.nginx.enable split
// on the dots.
var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// MinWordLength is the shortest word the inverted index stores.
const MinWordLength = 3

// Words extracts lower-cased words of length >= MinWordLength.
func Words(s string) []string {
	raw := wordRe.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if len(w) >= MinWordLength {
			out = append(out, w)
		}
	}
	return out
}

// htmlTagRe matches any HTML tag.
var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// StripHTML removes tags and resolves common entities. Used where plain
// text is needed (index terms, one-line summaries).
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// Option descriptions use a known-bounded HTML dialect. Rendering is a
// closed switch over these tags; anything else is dropped so behaviour
// stays testable.
var dialectTags = map[string]struct{}{
	"p": {}, "a": {}, "ul": {}, "ol": {}, "li": {},
	"code": {}, "strong": {}, "em": {}, "rendered-html": {},
}

type listFrame struct {
	ordered bool
	item    int
}

// RenderOptionHTML converts the option-description dialect to Markdown.
// Input without markup passes through trimmed.
func RenderOptionHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(html.UnescapeString(s))
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	var lists []listFrame
	var href string

	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidyMarkdown(b.String())

		case html.TextToken:
			text := string(z.Text())
			// Inside markup, newlines are formatting noise.
			text = strings.ReplaceAll(text, "\n", " ")
			b.WriteString(text)

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if _, ok := dialectTags[tag]; !ok {
				continue
			}
			switch tag {
			case "p":
				ensureBlankLine(&b)
			case "code":
				b.WriteByte('`')
			case "strong":
				b.WriteString("**")
			case "em":
				b.WriteByte('*')
			case "a":
				href = ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				b.WriteByte('[')
			case "ul":
				lists = append(lists, listFrame{})
			case "ol":
				lists = append(lists, listFrame{ordered: true})
			case "li":
				ensureNewline(&b)
				if n := len(lists); n > 0 && lists[n-1].ordered {
					lists[n-1].item++
					fmt.Fprintf(&b, "%d. ", lists[n-1].item)
				} else {
					b.WriteString("- ")
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p":
				ensureBlankLine(&b)
			case "code":
				b.WriteByte('`')
			case "strong":
				b.WriteString("**")
			case "em":
				b.WriteByte('*')
			case "a":
				b.WriteByte(']')
				if href != "" {
					b.WriteString("(" + href + ")")
				}
				href = ""
			case "ul", "ol":
				if len(lists) > 0 {
					lists = lists[:len(lists)-1]
				}
				ensureNewline(&b)
			}
		}
	}
}

func ensureNewline(b *strings.Builder) {
	s := b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

func ensureBlankLine(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	if strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
		return
	}
	b.WriteString("\n\n")
}

var multiBlankRe = regexp.MustCompile(`\n{3,}`)

func tidyMarkdown(s string) string {
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	// Collapse runs of spaces left by dropped tags.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
