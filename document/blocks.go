// Package document models article HTML as a sequence of typed top-level
// blocks so image insertion works on structure instead of substrings.
package document

import (
	"strings"

	"golang.org/x/net/html"
)

// MarkName is the comment body of a Placeholder Mark: <!-- IMG_PLACEHOLDER -->.
const MarkName = "IMG_PLACEHOLDER"

// CTAClass identifies the call-to-action block.
const CTAClass = "cta-box"

type Kind int

const (
	KindRaw Kind = iota
	KindHeading
	KindMark
	KindCTA
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindMark:
		return "mark"
	case KindCTA:
		return "cta"
	case KindAsset:
		return "asset"
	}
	return "raw"
}

// Block is a slice of the source document. Rendering a document concatenates
// block HTML, so parsing and rendering untouched input is lossless.
type Block struct {
	Kind  Kind
	Level int // heading level, 1-6
	HTML  string

	// elem groups blocks of one top-level element split by an inner mark.
	elem int
}

// Document is an ordered list of blocks.
type Document struct {
	Blocks []Block
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// Tags that implicitly close an open <p>.
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "div": true, "dl": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "ul": true,
}

// Parse splits src into top-level blocks. Placeholder Marks become their own
// blocks at any nesting depth. Unclosed <p> elements are closed the way
// browsers do, and a plain div wrapper ends at its first h1 or h2; other
// unbalanced tags extend the current block.
func Parse(src string) *Document {
	p := &parser{}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())

		switch tt {
		case html.CommentToken:
			if isMark(raw) {
				p.flush()
				p.blocks = append(p.blocks, Block{Kind: KindMark, HTML: raw, elem: p.nextElem()})
				continue
			}
			p.buf.WriteString(raw)

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if len(p.stack) > 0 && p.stack[len(p.stack)-1] == "p" && closesParagraph[tag] {
				p.stack = p.stack[:len(p.stack)-1]
				if len(p.stack) == 0 {
					p.flush()
				}
			}
			// An h1 or h2 directly inside a plain top-level div ends it, so an
			// unclosed wrapper cannot swallow the headings and CTA after it.
			if (tag == "h1" || tag == "h2") && len(p.stack) == 1 && p.stack[0] == "div" && p.kind == KindRaw {
				p.stack = p.stack[:0]
				p.flush()
			}
			if len(p.stack) == 0 {
				p.open(tag, hasAttr && hasClass(z, CTAClass))
			}
			p.buf.WriteString(raw)
			if voidElements[tag] {
				if len(p.stack) == 0 {
					p.flush()
				}
				continue
			}
			p.stack = append(p.stack, tag)

		case html.EndTagToken:
			name, _ := z.TagName()
			p.buf.WriteString(raw)
			p.close(string(name))
			if len(p.stack) == 0 {
				p.flush()
			}

		case html.SelfClosingTagToken:
			if len(p.stack) == 0 {
				p.flush()
				p.buf.WriteString(raw)
				p.flush()
				continue
			}
			p.buf.WriteString(raw)

		default:
			p.buf.WriteString(raw)
		}
	}
	p.flush()
	return &Document{Blocks: p.blocks}
}

type parser struct {
	blocks []Block
	buf    strings.Builder
	stack  []string
	kind   Kind
	level  int
	elem   int
	elems  int
}

func (p *parser) nextElem() int {
	p.elems++
	return p.elems
}

func (p *parser) open(tag string, cta bool) {
	p.flush()
	p.kind, p.level = KindRaw, 0
	switch {
	case len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6':
		p.kind, p.level = KindHeading, int(tag[1]-'0')
	case tag == "div" && cta:
		p.kind = KindCTA
	}
	p.elem = p.nextElem()
}

// close pops up to and including the innermost open tag. Stray end tags are ignored.
func (p *parser) close(tag string) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i] == tag {
			p.stack = p.stack[:i]
			return
		}
	}
}

// flush ends the current block. Inside an open element (split by a mark) the
// continuation keeps the element's kind and group.
func (p *parser) flush() {
	if p.buf.Len() > 0 {
		elem := p.elem
		if elem == 0 {
			elem = p.nextElem()
		}
		p.blocks = append(p.blocks, Block{Kind: p.kind, Level: p.level, HTML: p.buf.String(), elem: elem})
		p.buf.Reset()
	}
	if len(p.stack) == 0 {
		p.kind, p.level, p.elem = KindRaw, 0, 0
	}
}

func isMark(rawComment string) bool {
	body := strings.TrimSuffix(strings.TrimPrefix(rawComment, "<!--"), "-->")
	return strings.TrimSpace(body) == MarkName
}

func hasClass(z *html.Tokenizer, class string) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "class" {
			for _, c := range strings.Fields(string(val)) {
				if c == class {
					return true
				}
			}
		}
		if !more {
			return false
		}
	}
}

// Render returns the document as HTML.
func (d *Document) Render() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		sb.WriteString(b.HTML)
	}
	return sb.String()
}

// Marks counts the Placeholder Marks not yet consumed.
func (d *Document) Marks() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Kind == KindMark {
			n++
		}
	}
	return n
}

// DropMarks removes every unconsumed Placeholder Mark.
func (d *Document) DropMarks() {
	kept := d.Blocks[:0]
	for _, b := range d.Blocks {
		if b.Kind != KindMark {
			kept = append(kept, b)
		}
	}
	d.Blocks = kept
}
