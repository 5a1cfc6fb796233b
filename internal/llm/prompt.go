package llm

import (
	"fmt"
	"strings"

	"github.com/spherical/bbox-ocr/internal/domain"
)

const systemPrompt = `You are a document layout and OCR engine. You look at one scanned page and report every region on it.

Respond with a JSON array only. No prose, no markdown fences.
Each array item is an object with exactly these keys:
  "type": one of %s
  "bbox": [x1, y1, x2, y2] integers in a 0-1000 coordinate space, where (0,0) is the top-left corner and (1000,1000) the bottom-right corner of the page, regardless of the image size in pixels
  "text": the transcribed text of the region

Rules:
- Cover the whole page in reading order.
- For "table" put the table in GitHub Markdown table syntax in "text".
- For "image" put a short caption describing the picture in "text".
- For "stamp" and "signature" transcribe any legible text, or leave "text" empty.
- Do not invent content that is not visible. An empty page is [].`

const userPrompt = "Extract all regions on this page as the JSON array described above."

func buildSystemPrompt() string {
	kinds := make([]string, len(domain.ElementKinds))
	for i, k := range domain.ElementKinds {
		kinds[i] = fmt.Sprintf("%q", string(k))
	}
	return fmt.Sprintf(systemPrompt, strings.Join(kinds, ", "))
}

func buildUserPrompt(prior string) string {
	prior = strings.TrimSpace(prior)
	if prior == "" {
		return userPrompt
	}
	return userPrompt + "\nContext from the previous page: " + prior
}
