package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultImageURL is the fallback shown whenever a product picture is
// missing or cannot be resolved.
const DefaultImageURL = "https://via.placeholder.com/400x300?text=No+Image"

const MaxImageSize = 5 << 20 // 5 MiB

var ErrMissingImage = errors.New("image file is required")

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Validate checks an uploaded image's size and declared MIME type before it
// is relayed anywhere.
func Validate(size int64, mimeType string) error {
	if size <= 0 {
		return ErrMissingImage
	}
	if size > MaxImageSize {
		return fmt.Errorf("image size cannot exceed %dMB", MaxImageSize>>20)
	}
	if _, ok := allowedTypes[mimeType]; !ok {
		return errors.New("only JPEG, PNG and WebP images are allowed")
	}
	return nil
}

// URLChecker probes remote URLs to confirm they still serve an image.
type URLChecker struct {
	client *http.Client
}

func NewURLChecker(client *http.Client) *URLChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLChecker{client: client}
}

// IsValidImageURL issues a metadata-only probe and checks the declared
// content type. Any transport failure counts as invalid, so callers fall
// back to the placeholder rather than persisting a dead link.
func (c *URLChecker) IsValidImageURL(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}
