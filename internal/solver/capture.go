package solver

import (
	"fmt"
	"os"
	"path/filepath"
)

// Capture writes challenge screenshots to a well-known file that solvers read back.
type Capture struct {
	path string
}

// NewCapture creates a Capture writing to path.
func NewCapture(path string) *Capture {
	return &Capture{path: path}
}

// Path returns the hand-off file location.
func (c *Capture) Path() string {
	return c.path
}

// Save writes data to the hand-off file. Empty data means the page showed no
// challenge and yields ErrNoCaptchaImage.
func (c *Capture) Save(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrNoCaptchaImage
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Image{}, fmt.Errorf("create captcha dir: %w", err)
		}
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return Image{}, fmt.Errorf("write captcha image: %w", err)
	}
	return Image{Path: c.path, Data: data}, nil
}
