package document

import (
	"fmt"
	"strings"

	"github.com/spherical/bbox-ocr/internal/domain"
)

// TableMarker precedes the text of every table element.
const TableMarker = "<!-- table -->"

// Markdown renders pages in the order given. Identical input yields
// byte-identical output.
func Markdown(pages []domain.PageResult) string {
	sections := make([]string, 0, len(pages))
	for _, p := range pages {
		sections = append(sections, pageMarkdown(p))
	}
	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func pageMarkdown(p domain.PageResult) string {
	blocks := []string{fmt.Sprintf("# Page %d", p.PageIndex+1)}

	if p.Status == domain.StatusFailed {
		blocks = append(blocks, "> **Page failed:** "+oneLine(p.ErrorDetail))
		return strings.Join(blocks, "\n\n")
	}

	for _, el := range p.Elements {
		if block := elementMarkdown(el); block != "" {
			blocks = append(blocks, block)
		}
	}

	if p.Status == domain.StatusPartial {
		blocks = append(blocks, "> **Incomplete page:** "+oneLine(p.ErrorDetail))
	}
	return strings.Join(blocks, "\n\n")
}

func elementMarkdown(el domain.Element) string {
	text := strings.TrimSpace(el.Content)
	switch el.Kind {
	case domain.KindTable:
		return TableMarker + "\n" + text
	case domain.KindImage:
		return marker("Image", text)
	case domain.KindStamp:
		return marker("Stamp", text)
	case domain.KindSignature:
		return marker("Signature", text)
	default:
		return text
	}
}

func marker(label, text string) string {
	if text == "" {
		return "*[" + label + "]*"
	}
	return "*[" + label + ": " + oneLine(text) + "]*"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
