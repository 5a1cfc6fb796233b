package llm

import (
	"github.com/spherical/bbox-ocr/internal/domain"
)

// Builder assembles single-page inference requests.
type Builder struct {
	model        string
	maxTokens    int
	systemPrompt string
}

// NewBuilder creates a Builder for model with the given output token limit.
func NewBuilder(model string, maxTokens int) *Builder {
	return &Builder{
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: buildSystemPrompt(),
	}
}

// Build wraps one page image in a request. prior is optional context
// appended to the user instruction.
func (b *Builder) Build(image []byte, prior string) (*domain.InferenceRequest, error) {
	if len(image) == 0 {
		return nil, domain.RequestError("page image is empty", nil)
	}

	return &domain.InferenceRequest{
		Model:        b.model,
		SystemPrompt: b.systemPrompt,
		UserPrompt:   buildUserPrompt(prior),
		ImageDataURL: domain.ImageDataURL(image),
		MaxTokens:    b.maxTokens,
		Temperature:  0,
	}, nil
}
