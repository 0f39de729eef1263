package models

// GenerateRequest is one prompt sent to a remote inference provider
type GenerateRequest struct {
	Prompt      string
	Image       []byte // optional
	ImageMIME   string // e.g. "image/png", set when Image is present
	Temperature float32
	JSON        bool // ask the provider for a JSON-only answer when supported
}

// HasImage reports whether the request carries an image
func (r GenerateRequest) HasImage() bool {
	return len(r.Image) > 0
}
