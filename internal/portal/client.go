// Package portal calls the case-status AJAX endpoints directly, without a browser.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

const (
	fillActTypePath = "?p=casestatus/fillActType"
	submitActPath   = "?p=casestatus/submitAct"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Query identifies the court unit a request is about.
type Query struct {
	StateCode         string
	DistrictCode      string
	CourtCode         string
	EstablishmentCode string
}

// QueryFromPath builds a Query from a jurisdiction path.
func QueryFromPath(p models.JurisdictionPath) Query {
	return Query{
		StateCode:         p.State.Code,
		DistrictCode:      p.District.Code,
		CourtCode:         p.Complex.Code,
		EstablishmentCode: p.Establishment.Code,
	}
}

// form returns the jurisdiction fields as the portal expects them: the bare
// complex code and an empty establishment when the complex has none.
func (q Query) form() map[string]string {
	est := q.EstablishmentCode
	if models.IsSentinel(est) {
		est = ""
	}
	return map[string]string{
		"state_code":         q.StateCode,
		"dist_code":          q.DistrictCode,
		"court_complex_code": models.ComplexCode(q.CourtCode),
		"est_code":           est,
		"ajax_req":           "true",
		"app_token":          "",
	}
}

// SearchQuery is a submitAct request.
type SearchQuery struct {
	Query
	ActCode string
	Section string
	Status  string
	Captcha string
}

// Client talks to the portal's AJAX endpoints.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New creates a Client for the portal rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("X-Requested-With", "XMLHttpRequest")

	return &Client{http: client, logger: logger}
}

// FillActType returns the acts offered for a court unit, in portal order.
func (c *Client) FillActType(ctx context.Context, q Query) ([]models.Act, error) {
	form := q.form()
	form["search_act"] = ""

	body, err := c.post(ctx, fillActTypePath, form)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return []models.Act{}, nil
	}

	var resp struct {
		ActList string `json:"act_list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode fillActType response: %w", err)
	}
	return ParseActList(resp.ActList)
}

// SubmitAct runs an act search and returns the act_data fragment. An empty
// response body yields "" and no error.
func (c *Client) SubmitAct(ctx context.Context, q SearchQuery) (string, error) {
	form := q.form()
	form["search_act"] = ""
	form["actcode"] = q.ActCode
	form["under_sec"] = q.Section
	form["case_status"] = q.Status
	form["act_captcha_code"] = q.Captcha

	body, err := c.post(ctx, submitActPath, form)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var resp struct {
		ActData string `json:"act_data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode submitAct response: %w", err)
	}
	return resp.ActData, nil
}

func (c *Client) post(ctx context.Context, path string, form map[string]string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8").
		SetFormData(form).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("post %s: unexpected status %d", path, res.StatusCode())
	}

	c.logger.Debug("portal response", "path", path, "status", res.StatusCode(), "bytes", len(res.Body()), "duration", res.Time())
	return res.Body(), nil
}

// ParseActList extracts (code, name) pairs from an act_list <option> fragment,
// skipping placeholders and options without a value.
func ParseActList(fragment string) ([]models.Act, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<select>" + fragment + "</select>"))
	if err != nil {
		return nil, fmt.Errorf("parse act list: %w", err)
	}

	acts := []models.Act{}
	doc.Find("option").Each(func(_ int, sel *goquery.Selection) {
		code := strings.TrimSpace(sel.AttrOr("value", ""))
		name := strings.TrimSpace(sel.Text())
		if code == "" || name == "" || harvest.IsPlaceholder(name) {
			return
		}
		acts = append(acts, models.Act{Code: code, Name: name})
	})
	return acts, nil
}
