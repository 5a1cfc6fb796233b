package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/bbox-ocr/internal/domain"
)

func newTestParser() *Parser {
	return NewParser(nil)
}

func TestParseWellFormed(t *testing.T) {
	content := `[
  {"type": "text", "bbox": [10, 20, 500, 60], "text": "Invoice 2024-118"},
  {"type": "table", "bbox": [10, 100, 990, 600], "text": "| Item | Qty |\n|---|---|\n| Bolt | 4 |"},
  {"type": "signature", "bbox": [700, 900, 950, 980], "text": "J. Doe"}
]`
	res := newTestParser().Parse(&domain.RawResponse{Content: content, FinishReason: "stop"})

	assert.Equal(t, domain.StatusOK, res.Status)
	assert.Empty(t, res.Detail)
	require.Len(t, res.Elements, 3)
	assert.Equal(t, domain.KindText, res.Elements[0].Kind)
	assert.Equal(t, domain.BBox{10, 20, 500, 60}, res.Elements[0].BBox)
	assert.Equal(t, "Invoice 2024-118", res.Elements[0].Content)
	assert.Equal(t, domain.KindTable, res.Elements[1].Kind)
	assert.Equal(t, domain.KindSignature, res.Elements[2].Kind)
}

func TestParseFencedWithProse(t *testing.T) {
	content := "Sure! Here is the layout:\n```json\n[{\"type\":\"image\",\"bbox\":[0,0,100,100],\"text\":\"logo\"},]\n```\nLet me know."
	res := newTestParser().ParseContent(content, false)

	assert.Equal(t, domain.StatusOK, res.Status)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, domain.KindImage, res.Elements[0].Kind)
	assert.Equal(t, "logo", res.Elements[0].Content)
}

func TestParseClampsAndSwaps(t *testing.T) {
	content := `[{"type":"text","bbox":[1200,-30,400,500.6],"text":"x"}]`
	res := newTestParser().ParseContent(content, false)

	require.Len(t, res.Elements, 1)
	assert.Equal(t, domain.BBox{400, 0, 1000, 501}, res.Elements[0].BBox)
	assert.True(t, res.Elements[0].BBox.Valid())
}

func TestParseDropsInvalidElements(t *testing.T) {
	content := `[
  {"type":"header","bbox":[0,0,10,10],"text":"unknown kind"},
  {"type":"text","bbox":[0,0,10],"text":"short bbox"},
  {"type":"text","bbox":["a",0,10,10],"text":"non numeric"},
  {"type":"text","text":"missing bbox"},
  "not an object",
  {"type":"Stamp","bbox":["5","6","7","8"],"content":"PAID"}
]`
	res := newTestParser().ParseContent(content, false)

	assert.Equal(t, domain.StatusOK, res.Status)
	assert.Equal(t, 5, res.Dropped)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, domain.KindStamp, res.Elements[0].Kind)
	assert.Equal(t, domain.BBox{5, 6, 7, 8}, res.Elements[0].BBox)
	assert.Equal(t, "PAID", res.Elements[0].Content)
}

func TestParseTruncationRepair(t *testing.T) {
	content := `[{"type":"text","bbox":[0,0,100,50],"text":"first"},` +
		`{"type":"text","bbox":[0,60,100,110],"text":"second with } and ] inside"},` +
		`{"type":"table","bbox":[0,120,1000,900],"text":"| a | b |\n| 1 | 2`
	res := newTestParser().Parse(&domain.RawResponse{Content: content, FinishReason: "length"})

	assert.Equal(t, domain.StatusPartial, res.Status)
	assert.True(t, res.Repaired)
	assert.Contains(t, res.Detail, "truncated")
	require.Len(t, res.Elements, 2)
	assert.Equal(t, "first", res.Elements[0].Content)
	assert.Equal(t, "second with } and ] inside", res.Elements[1].Content)
}

func TestParseUnrecoverableTruncation(t *testing.T) {
	content := `[{"type":"text","bbox":[0,0,100,50],"text":"never fini`
	res := newTestParser().Parse(&domain.RawResponse{Content: content, FinishReason: "length"})

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "unrecoverable truncated response", res.Detail)
	assert.Empty(t, res.Elements)
}

func TestParseStrictButTruncatedIsPartial(t *testing.T) {
	content := `[{"type":"text","bbox":[0,0,100,50],"text":"fits"}]`
	res := newTestParser().Parse(&domain.RawResponse{Content: content, FinishReason: "length"})

	assert.Equal(t, domain.StatusPartial, res.Status)
	assert.NotEmpty(t, res.Detail)
	assert.Len(t, res.Elements, 1)
}

func TestParseBlankPage(t *testing.T) {
	for _, content := range []string{"", "   ", "[]", "```json\n[]\n```"} {
		res := newTestParser().ParseContent(content, false)
		assert.Equal(t, domain.StatusOK, res.Status, content)
		assert.Empty(t, res.Elements, content)
		assert.True(t, res.NeedsReview, content)
	}
}

func TestParseProseOnly(t *testing.T) {
	res := newTestParser().ParseContent("I cannot read this page, it is too blurry.", false)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Detail, "parse error")
}

func TestParseObjectForm(t *testing.T) {
	content := `{"page_rotation_degrees": -2.5, "elements": [{"type":"text","bbox":[1,2,3,4],"text":"tilted"}]}`
	res := newTestParser().ParseContent(content, false)

	assert.Equal(t, domain.StatusOK, res.Status)
	assert.Equal(t, -2.5, res.Rotation)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "tilted", res.Elements[0].Content)
}

func TestParseObjectFormTruncated(t *testing.T) {
	content := `{"page_rotation_degrees": 90, "elements": [{"type":"text","bbox":[1,2,3,4],"text":"a"},{"type":"text","bbox":[5,6`
	res := newTestParser().ParseContent(content, true)

	assert.Equal(t, domain.StatusPartial, res.Status)
	assert.Equal(t, float64(90), res.Rotation)
	require.Len(t, res.Elements, 1)
}

func TestParseSingleElementObject(t *testing.T) {
	res := newTestParser().ParseContent(`{"type":"text","bbox":[1,2,3,4],"text":"alone"}`, false)

	assert.Equal(t, domain.StatusOK, res.Status)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "alone", res.Elements[0].Content)
}

func TestParseNilResponse(t *testing.T) {
	res := newTestParser().Parse(nil)
	assert.Equal(t, domain.StatusFailed, res.Status)
}

func TestParseAllElementsRejected(t *testing.T) {
	res := newTestParser().ParseContent(`[{"type":"footer","bbox":[0,0,1,1],"text":"x"},{"type":"text","bbox":"nope"}]`, false)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Empty(t, res.Elements)
	assert.Equal(t, 2, res.Dropped)
	assert.Contains(t, res.Detail, "all 2 elements were rejected")
}

func TestParseBackticksInsideText(t *testing.T) {
	content := "[{\"type\":\"text\",\"bbox\":[1,2,3,4],\"text\":\"see ```go x``` here\"}]"
	for _, truncated := range []bool{false, true} {
		res := newTestParser().ParseContent(content, truncated)

		require.Len(t, res.Elements, 1)
		assert.Equal(t, "see ```go x``` here", res.Elements[0].Content)
	}

	// fenced payload whose element text also quotes a fence
	fenced := "```json\n" + content + "\n```"
	res := newTestParser().ParseContent(fenced, false)
	assert.Equal(t, domain.StatusOK, res.Status)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "see ```go x``` here", res.Elements[0].Content)
}

func TestParseSkipsBracketedProse(t *testing.T) {
	content := "Page [1] result:\n[{\"type\":\"text\",\"bbox\":[1,2,3,4],\"text\":\"body\"}]"
	res := newTestParser().ParseContent(content, false)

	assert.Equal(t, domain.StatusOK, res.Status)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "body", res.Elements[0].Content)
}

func TestParseNoElementArray(t *testing.T) {
	for _, content := range []string{"Page [1] of [2]", "values: [1, 2, 3]", `{not json}`} {
		res := newTestParser().ParseContent(content, false)

		assert.Equal(t, domain.StatusFailed, res.Status, content)
		assert.NotEmpty(t, res.Detail, content)
	}
}
