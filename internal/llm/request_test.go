package llm

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/bbox-ocr/internal/domain"
)

func TestBuild(t *testing.T) {
	b := NewBuilder("Qwen/Qwen2.5-VL-7B-Instruct", 1024)
	img := pngMagic()

	req, err := b.Build(img, "")
	require.NoError(t, err)

	assert.Equal(t, "Qwen/Qwen2.5-VL-7B-Instruct", req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, float64(0), req.Temperature)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(img), req.ImageDataURL)
	assert.Equal(t, userPrompt, req.UserPrompt)

	for _, kind := range domain.ElementKinds {
		assert.Contains(t, req.SystemPrompt, `"`+string(kind)+`"`)
	}
	assert.Contains(t, req.SystemPrompt, "0-1000")
	assert.Contains(t, strings.ToLower(req.SystemPrompt), "json array")
}

func TestBuildWithPriorContext(t *testing.T) {
	req, err := NewBuilder("m", 10).Build(pngMagic(), "  Section 4: Liabilities ")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(req.UserPrompt, "Context from the previous page: Section 4: Liabilities"))
}

func TestBuildRejectsEmptyImage(t *testing.T) {
	_, err := NewBuilder("m", 10).Build(nil, "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeRequest))
}
