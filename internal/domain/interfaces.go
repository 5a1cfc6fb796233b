package domain

import (
	"context"
	"time"
)

// PageSource yields rasterized pages of one PDF
type PageSource interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// Render rasterizes the zero-based page at the given DPI and returns PNG bytes
	Render(ctx context.Context, pageIndex int, dpi int) ([]byte, error)

	Close() error
}

// RequestBuilder turns a page image into an inference request
type RequestBuilder interface {
	Build(image []byte, priorPageText string) (*InferenceRequest, error)
}

// InferenceClient performs one inference call against the model endpoint.
// Failures are reported as *TransportError.
type InferenceClient interface {
	Send(ctx context.Context, req *InferenceRequest, timeout time.Duration) (*RawResponse, error)
}

// Pipeline processes a complete PDF into a Document
type Pipeline interface {
	Process(ctx context.Context, src PageSource, eventCh chan<- StreamEvent) (*Document, error)
}
