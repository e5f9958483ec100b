package solver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// CommandRunner executes an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Tesseract solves image challenges with the tesseract OCR binary.
type Tesseract struct {
	bin string
	run CommandRunner
}

// NewTesseract creates an OCR solver using the binary at bin.
func NewTesseract(bin string) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	return &Tesseract{bin: bin, run: execRunner}
}

// WithRunner replaces the command runner.
func (t *Tesseract) WithRunner(run CommandRunner) *Tesseract {
	t.run = run
	return t
}

// Name returns "tesseract".
func (t *Tesseract) Name() string {
	return "tesseract"
}

// Solve runs a single OCR pass in single-line mode over the hand-off file.
func (t *Tesseract) Solve(ctx context.Context, img Image) (*SolveResult, error) {
	if img.Empty() {
		return nil, ErrNoCaptchaImage
	}

	path := img.Path
	if path == "" {
		f, err := os.CreateTemp("", "captcha-*.png")
		if err != nil {
			return nil, &SolverError{Message: "tesseract temp file", Cause: err}
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(img.Data); err != nil {
			f.Close()
			return nil, &SolverError{Message: "tesseract temp file", Cause: err}
		}
		f.Close()
		path = f.Name()
	}

	start := time.Now()
	out, err := t.run(ctx, t.bin, path, "stdout", "--psm", "7")
	if err != nil {
		return nil, &SolverError{Message: fmt.Sprintf("%s failed", t.bin), Cause: err}
	}

	return &SolveResult{
		Text:       Normalize(string(out)),
		SolverName: t.Name(),
		Duration:   time.Since(start),
	}, nil
}

// Normalize keeps only ASCII letters and digits of an OCR transcription.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
