// Package document assembles page results into the final document views.
package document

import (
	"slices"

	"github.com/spherical/bbox-ocr/internal/domain"
)

// Assemble orders page results by index and derives the Markdown view.
// The input slice is not modified.
func Assemble(results []domain.PageResult) *domain.Document {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b domain.PageResult) int {
		return a.PageIndex - b.PageIndex
	})

	doc := &domain.Document{
		Pages:    make([]domain.DocumentPage, len(ordered)),
		Markdown: Markdown(ordered),
	}
	for i, r := range ordered {
		if r.Elements == nil {
			r.Elements = []domain.Element{}
		}
		doc.Pages[i] = domain.DocumentPage{PageResult: r}
		if len(r.RawImage) > 0 {
			doc.Pages[i].Image = domain.ImageDataURL(r.RawImage)
		}
	}
	return doc
}
