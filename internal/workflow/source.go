package workflow

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ImageSource is a capture device. The controller closes it on every exit path
// from the capture flow.
type ImageSource interface {
	// Capture reads one still image
	Capture(ctx context.Context) (data []byte, contentType string, err error)
	// Close releases the device
	Close() error
}

// StaticImage is an ImageSource that yields a fixed image
type StaticImage struct {
	Data        []byte
	ContentType string
}

func (s *StaticImage) Capture(context.Context) ([]byte, string, error) {
	if len(s.Data) == 0 {
		return nil, "", ErrNoImage
	}
	return s.Data, s.ContentType, nil
}

func (s *StaticImage) Close() error { return nil }

// SnapshotCamera captures stills from a network camera's HTTP snapshot endpoint,
// the kind most IP cameras and phone webcam apps expose.
type SnapshotCamera struct {
	url    string
	client *resty.Client

	mu     sync.Mutex
	closed bool
}

// NewSnapshotCamera returns a camera reading from url
func NewSnapshotCamera(url string, timeout time.Duration) *SnapshotCamera {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapshotCamera{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// Capture fetches one snapshot
func (c *SnapshotCamera) Capture(ctx context.Context) ([]byte, string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, "", fmt.Errorf("camera is closed")
	}

	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, "", fmt.Errorf("fetching snapshot: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode())
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Close drops the camera's idle connections
func (c *SnapshotCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.client.GetClient().CloseIdleConnections()
	return nil
}
