package domain

import (
	"math"
	"strings"
	"time"
)

// CoordinateScale is the upper bound of the normalized page coordinate space.
const CoordinateScale = 1000

// ElementKind classifies a region detected on a page
type ElementKind string

const (
	KindText      ElementKind = "text"
	KindTable     ElementKind = "table"
	KindImage     ElementKind = "image"
	KindStamp     ElementKind = "stamp"
	KindSignature ElementKind = "signature"
)

// ElementKinds lists every recognized kind in prompt order
var ElementKinds = []ElementKind{KindText, KindTable, KindImage, KindStamp, KindSignature}

// ParseElementKind normalizes a model-supplied kind label.
// Unknown labels return false.
func ParseElementKind(s string) (ElementKind, bool) {
	k := ElementKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ElementKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// BBox is a [x1, y1, x2, y2] rectangle in normalized page coordinates
type BBox [4]int

// NewBBox clamps and rounds raw coordinates into [0, CoordinateScale]
// and orders each axis so that x1 <= x2 and y1 <= y2.
func NewBBox(x1, y1, x2, y2 float64) BBox {
	a, b := clampCoord(x1), clampCoord(x2)
	c, d := clampCoord(y1), clampCoord(y2)
	if a > b {
		a, b = b, a
	}
	if c > d {
		c, d = d, c
	}
	return BBox{a, c, b, d}
}

func clampCoord(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > CoordinateScale {
		return CoordinateScale
	}
	return int(r)
}

// Valid reports whether the box satisfies the coordinate invariants
func (b BBox) Valid() bool {
	for _, v := range b {
		if v < 0 || v > CoordinateScale {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

func (b BBox) X1() int { return b[0] }
func (b BBox) Y1() int { return b[1] }
func (b BBox) X2() int { return b[2] }
func (b BBox) Y2() int { return b[3] }

// Element is one classified region of a page
type Element struct {
	Kind    ElementKind `json:"type"`
	BBox    BBox        `json:"bbox"`
	Content string      `json:"text"`
}

// PageStatus is the terminal outcome of a page
type PageStatus string

const (
	StatusOK      PageStatus = "ok"
	StatusPartial PageStatus = "partial"
	StatusFailed  PageStatus = "failed"
)

// PageResult is the outcome of processing one page
type PageResult struct {
	PageIndex       int        `json:"pageIndex"`
	Status          PageStatus `json:"status"`
	Elements        []Element  `json:"elements"`
	RawImage        []byte     `json:"-"`
	ErrorDetail     string     `json:"errorDetail,omitempty"`
	RotationDegrees float64    `json:"rotationDegrees,omitempty"`
	NeedsReview     bool       `json:"needsReview,omitempty"`
	Attempts        int        `json:"attempts"`
	FinishReason    string     `json:"finishReason,omitempty"`
}

// DocumentPage is a page result as it appears in an assembled document
type DocumentPage struct {
	PageResult
	Image string `json:"image,omitempty"`
}

// Document is the assembled output for one PDF
type Document struct {
	ID       string         `json:"id"`
	Source   string         `json:"source,omitempty"`
	Model    string         `json:"model,omitempty"`
	Pages    []DocumentPage `json:"pages"`
	Markdown string         `json:"markdown"`
}

// Results returns the page results without their encoded images.
func (d *Document) Results() []PageResult {
	out := make([]PageResult, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.PageResult
	}
	return out
}

// Stats counts pages by status
func (d *Document) Stats() ProcessingStats {
	stats := ProcessingStats{PagesProcessed: len(d.Pages)}
	for _, p := range d.Pages {
		switch p.Status {
		case StatusOK:
			stats.SuccessfulPages++
		case StatusPartial:
			stats.PartialPages++
		case StatusFailed:
			stats.FailedPages++
		}
	}
	return stats
}

// InferenceRequest is a single-page request to the vision model
type InferenceRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	ImageDataURL string
	MaxTokens    int
	Temperature  float64
}

// RawResponse is the unparsed model output for one request
type RawResponse struct {
	Content          string
	FinishReason     string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Truncated reports whether generation stopped at the token limit
func (r *RawResponse) Truncated() bool {
	return r != nil && r.FinishReason == "length"
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageRetry      EventType = "page_retry"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing.
// Payload is the page count for start, the PageStatus for page_complete,
// ProcessingStats for complete and a message string otherwise.
type StreamEvent struct {
	Type      EventType   `json:"type"`
	PageIndex int         `json:"page_index"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProcessingStats summarizes a finished document
type ProcessingStats struct {
	TotalTime       time.Duration
	PagesProcessed  int
	SuccessfulPages int
	PartialPages    int
	FailedPages     int
}
