package document

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Role says where an image belongs in the article.
type Role string

const (
	RoleCover   Role = "cover"
	RoleBody    Role = "body"
	RoleClosing Role = "closing"
)

// Placement is one rendered image waiting for a position.
type Placement struct {
	Role Role
	HTML string
}

// Position records where a placement ended up.
type Position string

const (
	PositionMark      Position = "mark"
	PositionBeforeCTA Position = "before-cta"
	PositionHeading   Position = "after-heading"
	PositionEnd       Position = "end"
	PositionMetadata  Position = "metadata"
)

// Inject places each item, in order, at the first unconsumed Placeholder Mark.
// Without a mark left, a closing image goes before the call-to-action block and
// a body image after the first h2; both fall back to the end of the document.
// Cover images are never inserted: they travel as entry metadata.
func (d *Document) Inject(items []Placement) []Position {
	out := make([]Position, 0, len(items))
	for _, item := range items {
		if item.Role == RoleCover {
			out = append(out, PositionMetadata)
			continue
		}
		asset := Block{Kind: KindAsset, HTML: item.HTML}

		if i := d.indexOf(KindMark, 0); i >= 0 {
			asset.elem = d.Blocks[i].elem
			d.Blocks[i] = asset
			out = append(out, PositionMark)
			continue
		}

		switch item.Role {
		case RoleClosing:
			if i := d.indexOf(KindCTA, 0); i >= 0 {
				d.insert(i, asset)
				out = append(out, PositionBeforeCTA)
				continue
			}
		case RoleBody:
			if i := d.afterFirstSubheading(); i >= 0 {
				d.insert(i, asset)
				out = append(out, PositionHeading)
				continue
			}
		}
		d.Blocks = append(d.Blocks, asset)
		out = append(out, PositionEnd)
	}
	return out
}

func (d *Document) indexOf(kind Kind, level int) int {
	for i, b := range d.Blocks {
		if b.Kind == kind && (level == 0 || b.Level == level) {
			return i
		}
	}
	return -1
}

// afterFirstSubheading is the insertion index just past the first h2 element
// and any images already placed behind it.
func (d *Document) afterFirstSubheading() int {
	h := d.indexOf(KindHeading, 2)
	if h < 0 {
		return -1
	}
	i := h + 1
	for i < len(d.Blocks) && d.Blocks[i].elem == d.Blocks[h].elem && d.Blocks[i].Kind != KindAsset {
		i++
	}
	for i < len(d.Blocks) && d.Blocks[i].Kind == KindAsset {
		i++
	}
	return i
}

func (d *Document) insert(i int, b Block) {
	d.Blocks = append(d.Blocks, Block{})
	copy(d.Blocks[i+1:], d.Blocks[i:])
	d.Blocks[i] = b
}

// Figure renders an image as a WordPress image block.
func Figure(src, alt, caption string) string {
	var sb strings.Builder
	sb.WriteString("\n<figure class=\"wp-block-image size-large\">")
	sb.WriteString(fmt.Sprintf("<img src=\"%s\" alt=\"%s\"/>", html.EscapeString(src), html.EscapeString(alt)))
	if caption != "" {
		sb.WriteString("<figcaption>" + html.EscapeString(caption) + "</figcaption>")
	}
	sb.WriteString("</figure>\n")
	return sb.String()
}

// PlainText returns the visible text of src with whitespace collapsed.
func PlainText(src string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Summary is the first limit characters of the plain text, with "..." when cut.
func Summary(src string, limit int) string {
	text := []rune(PlainText(src))
	if len(text) <= limit {
		return string(text)
	}
	return strings.TrimSpace(string(text[:limit])) + "..."
}
