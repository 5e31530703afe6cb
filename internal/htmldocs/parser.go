package htmldocs

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Field labels used by both page layouts. Home Manager emits
// span-labelled paragraphs; the nix-darwin manual wraps the same labels
// in itemizedlist divs. Matching on the rendered text covers both.
var fieldLabels = []struct {
	label string
	field func(*Option, string)
}{
	{"Type:", func(o *Option, v string) { o.Type = v }},
	{"Default:", func(o *Option, v string) { o.Default = v }},
	{"Example:", func(o *Option, v string) { o.Example = v }},
	{"Declared by:", func(o *Option, v string) { o.DeclaredBy = v }},
}

// ParseOptions scrapes option records from an upstream reference page.
// source tags each record with the page that produced it; baseURL, when
// non-empty, is combined with the dt anchor into a manual URL. Output
// order equals document order and duplicates are preserved. Missing
// fields stay empty; parsing never fails on malformed markup.
func ParseOptions(page, source, baseURL string) ([]Option, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	p := &pageParser{source: source, baseURL: baseURL, category: "Uncategorized"}
	p.walk(root)
	return p.options, nil
}

type pageParser struct {
	source  string
	baseURL string

	category    string
	pendingName string
	pendingID   string
	options     []Option
}

// walk visits element nodes in document order, tracking the nearest
// preceding h3 as the current category and pairing each dt with the dd
// that follows it.
func (p *pageParser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "h3":
			if heading := strings.TrimSpace(textContent(n)); heading != "" {
				p.category = heading
			}
		case "dt":
			p.pendingName, p.pendingID = extractTerm(n)
			return
		case "dd":
			if p.pendingName != "" {
				p.options = append(p.options, p.parseDefinition(n))
				p.pendingName, p.pendingID = "", ""
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

// parseDefinition turns a dd node into an option record. Children whose
// text starts with a known label become typed fields; everything else is
// description, rendered to Markdown.
func (p *pageParser) parseDefinition(dd *html.Node) Option {
	opt := Option{
		Name:     p.pendingName,
		Category: p.category,
		Source:   p.source,
	}
	if p.baseURL != "" && p.pendingID != "" {
		opt.ManualURL = p.baseURL + "#" + p.pendingID
	}

	var descNodes []*html.Node
	for c := dd.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		// The container check runs first: an itemizedlist's collapsed
		// text starts with the first label and would otherwise swallow
		// the remaining fields.
		if fieldList(c) {
			p.parseFieldList(&opt, c, &descNodes)
			continue
		}
		if p.assignField(&opt, collapseSpace(textContent(c))) {
			continue
		}
		descNodes = append(descNodes, c)
	}
	opt.Description = renderDescription(descNodes)
	return opt
}

// fieldList reports whether n is an itemizedlist div carrying labelled
// fields. The nix-darwin manual nests Type/Default/Example in one such
// div per option instead of emitting flat paragraphs.
func fieldList(n *html.Node) bool {
	if n.Data != "div" || !strings.Contains(attr(n, "class"), "itemizedlist") {
		return false
	}
	text := collapseSpace(textContent(n))
	for _, fl := range fieldLabels {
		if strings.Contains(text, fl.label) {
			return true
		}
	}
	return false
}

// parseFieldList assigns one field per list item. Items without a known
// label stay description content.
func (p *pageParser) parseFieldList(opt *Option, div *html.Node, descNodes *[]*html.Node) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			if !p.assignField(opt, collapseSpace(textContent(n))) {
				*descNodes = append(*descNodes, n)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(div)
}

// assignField matches a labelled field paragraph; it reports whether the
// text was consumed.
func (p *pageParser) assignField(opt *Option, text string) bool {
	for _, fl := range fieldLabels {
		if strings.HasPrefix(text, fl.label) {
			fl.field(opt, strings.TrimSpace(strings.TrimPrefix(text, fl.label)))
			return true
		}
	}
	return false
}

// extractTerm pulls the dotted option name and the "opt-…" anchor id
// out of a dt node. The name lives in a code.option element; if the
// markup drifts, the dt text is the fallback.
func extractTerm(dt *html.Node) (name, anchorID string) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "a" {
				if id := attr(n, "id"); strings.HasPrefix(id, "opt-") {
					anchorID = id
				}
			}
			if n.Data == "code" && strings.Contains(attr(n, "class"), "option") && name == "" {
				name = strings.TrimSpace(textContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(dt)
	if name == "" {
		name = collapseSpace(textContent(dt))
	}
	return name, anchorID
}

// renderDescription serialises the description nodes back to HTML and
// converts them to Markdown. Unlike NixOS option descriptions, these
// pages carry unrestricted docbook output.
func renderDescription(nodes []*html.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, n := range nodes {
		_ = html.Render(&sb, n)
	}
	md, err := htmltomarkdown.ConvertString(sb.String())
	if err != nil {
		// Fall back to plain text rather than dropping the record.
		var plain strings.Builder
		for _, n := range nodes {
			plain.WriteString(textContent(n))
			plain.WriteByte(' ')
		}
		return collapseSpace(plain.String())
	}
	return strings.TrimSpace(md)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
