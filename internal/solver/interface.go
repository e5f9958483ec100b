// Package solver turns a rendered CAPTCHA challenge image into text.
//
// Solving is best effort: the result is never verified before submission and
// no solver retries a failed transcription.
package solver

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Solver is the interface for CAPTCHA solving backends.
type Solver interface {
	// Name returns the solver's name (e.g., "tesseract", "2captcha").
	Name() string

	// Solve transcribes the challenge image.
	Solve(ctx context.Context, img Image) (*SolveResult, error)
}

// Image is a captured challenge. Path is the hand-off file the screenshot was
// written to; Data holds the same bytes.
type Image struct {
	Path string
	Data []byte
}

// Empty reports whether the image carries no challenge.
func (i Image) Empty() bool {
	return len(i.Data) == 0 && i.Path == ""
}

// SolveResult contains the result of a solve.
type SolveResult struct {
	// Text is the transcription to type into the form.
	Text string

	// Cost is the actual cost incurred for this solve.
	Cost float64

	// SolverName is the name of the solver that produced Text.
	SolverName string

	// Duration is how long the solve took.
	Duration time.Duration
}

// Chain is a solver that tries multiple solvers in order.
type Chain struct {
	solvers []Solver
	logger  *slog.Logger
}

// NewChain creates a new solver chain.
func NewChain(logger *slog.Logger, solvers ...Solver) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{solvers: solvers, logger: logger}
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of solvers in the chain.
func (c *Chain) Len() int {
	return len(c.solvers)
}

// Solve tries each solver in order until one returns non-empty text. An
// empty transcription is still an answer: if no solver does better, the first
// empty result is returned so the form is submitted as is.
func (c *Chain) Solve(ctx context.Context, img Image) (*SolveResult, error) {
	if img.Empty() {
		return nil, ErrNoCaptchaImage
	}

	var (
		empty   *SolveResult
		lastErr error
	)
	for _, s := range c.solvers {
		result, err := s.Solve(ctx, img)
		if err == nil && result != nil && result.Text != "" {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			c.logger.Debug("solver returned empty text, trying next", "solver", s.Name())
			if empty == nil && result != nil {
				empty = result
			}
			continue
		}
		c.logger.Debug("solver failed, trying next", "solver", s.Name(), "error", err)
		lastErr = err
	}

	switch {
	case empty != nil:
		return empty, nil
	case lastErr != nil:
		return nil, lastErr
	default:
		return nil, ErrNoSolverAvailable
	}
}

// Errors
var (
	ErrNoCaptchaImage    = errors.New("no captcha image found")
	ErrNoSolverAvailable = &SolverError{Message: "no solver configured"}
	ErrSolverTimeout     = &SolverError{Message: "solver timeout"}
)

// SolverError represents a solver error.
type SolverError struct {
	Message string
	Cause   error
}

func (e *SolverError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SolverError) Unwrap() error {
	return e.Cause
}
