package llm

import (
	"context"
	"encoding/base64"
	"errors"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Image is a PNG-encoded image attached to a vision request.
type Image struct {
	Name string
	PNG  []byte
}

// DataURL encodes the image as a base64 data URL for vision transports.
func (i Image) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(i.PNG)
}

// Request is a single completion request. Images are optional; when
// present the request is routed through a vision-capable model path.
type Request struct {
	System      string
	User        string
	Images      []Image
	Temperature float32
	JSONMode    bool
}

// Client submits a prompt and returns the raw completion text. Transport
// failures surface as errors; response interpretation is the caller's job.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
