package solver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	twoCaptchaBaseURL = "https://2captcha.com"
	// Normal image captcha price per solve ($1.00/1000).
	twoCaptchaImagePrice = 0.001
)

// twoCaptchaResponse is the json=1 envelope used by in.php and res.php.
type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// TwoCaptcha implements the Solver interface using 2Captcha's normal image API.
type TwoCaptcha struct {
	apiKey     string
	client     *resty.Client
	pollDelay  time.Duration
	maxRetries int
}

// NewTwoCaptcha creates a new 2Captcha solver.
func NewTwoCaptcha(apiKey string) *TwoCaptcha {
	client := resty.New()
	client.SetBaseURL(twoCaptchaBaseURL)
	client.SetTimeout(30 * time.Second)

	return &TwoCaptcha{
		apiKey:     apiKey,
		client:     client,
		pollDelay:  5 * time.Second,
		maxRetries: 24, // 2 minutes max (24 * 5s)
	}
}

// Name returns "2captcha".
func (t *TwoCaptcha) Name() string {
	return "2captcha"
}

// Solve uploads the image to 2Captcha and waits for the transcription.
func (t *TwoCaptcha) Solve(ctx context.Context, img Image) (*SolveResult, error) {
	data := img.Data
	if len(data) == 0 && img.Path != "" {
		var err error
		if data, err = os.ReadFile(img.Path); err != nil {
			return nil, &SolverError{Message: "read captcha image", Cause: err}
		}
	}
	if len(data) == 0 {
		return nil, ErrNoCaptchaImage
	}

	start := time.Now()
	taskID, err := t.submitTask(ctx, data)
	if err != nil {
		return nil, err
	}

	text, err := t.pollResult(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &SolveResult{
		Text:       strings.TrimSpace(text),
		Cost:       twoCaptchaImagePrice,
		SolverName: t.Name(),
		Duration:   time.Since(start),
	}, nil
}

// Balance returns the current account balance.
func (t *TwoCaptcha) Balance(ctx context.Context) (float64, error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    t.apiKey,
			"action": "getbalance",
			"json":   "1",
		}).
		Get("/res.php")
	if err != nil {
		return -1, err
	}

	var result twoCaptchaResponse
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		balance, err := strconv.ParseFloat(strings.TrimSpace(res.String()), 64)
		if err != nil {
			return -1, fmt.Errorf("failed to parse balance: %s", res.String())
		}
		return balance, nil
	}
	if result.Status != 1 {
		return -1, fmt.Errorf("failed to get balance: %s", result.Request)
	}

	balance, err := strconv.ParseFloat(result.Request, 64)
	if err != nil {
		return -1, fmt.Errorf("failed to parse balance: %s", result.Request)
	}
	return balance, nil
}

// submitTask uploads the base64 image to in.php.
func (t *TwoCaptcha) submitTask(ctx context.Context, data []byte) (string, error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":    t.apiKey,
			"method": "base64",
			"body":   base64.StdEncoding.EncodeToString(data),
			"json":   "1",
		}).
		Post("/in.php")
	if err != nil {
		return "", &SolverError{Message: "2captcha submit", Cause: err}
	}

	var result twoCaptchaResponse
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %s", res.String())
	}
	if result.Status != 1 {
		return "", &SolverError{Message: fmt.Sprintf("2captcha error: %s", result.Request)}
	}

	return result.Request, nil
}

// pollResult polls res.php until the text is ready.
func (t *TwoCaptcha) pollResult(ctx context.Context, taskID string) (string, error) {
	params := map[string]string{
		"key":    t.apiKey,
		"action": "get",
		"id":     taskID,
		"json":   "1",
	}

	for i := 0; i < t.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.pollDelay):
		}

		res, err := t.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/res.php")
		if err != nil {
			continue
		}

		var result twoCaptchaResponse
		if err := json.Unmarshal(res.Body(), &result); err != nil {
			continue
		}

		if result.Status == 1 {
			return result.Request, nil
		}

		switch result.Request {
		case "CAPCHA_NOT_READY":
			continue
		case "ERROR_CAPTCHA_UNSOLVABLE":
			return "", &SolverError{Message: "CAPTCHA is unsolvable"}
		case "ERROR_WRONG_CAPTCHA_ID":
			return "", &SolverError{Message: "wrong CAPTCHA ID"}
		default:
			if strings.HasPrefix(result.Request, "ERROR_") {
				return "", &SolverError{Message: result.Request}
			}
		}
	}

	return "", ErrSolverTimeout
}
