// Package cnr derives case rows (case number, parties, CNR) from stored
// search result markup.
package cnr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// Case is one row of a result table.
type Case struct {
	CaseTypeNumberYear     string
	PetitionerVsRespondent string
	CNRNumber              string
}

// NoCases is returned for markup that carries no result table.
var NoCases = Case{
	CaseTypeNumberYear:     models.SentinelNoCNR,
	PetitionerVsRespondent: models.SentinelNoCNR,
	CNRNumber:              models.SentinelNoCNR,
}

// Extract parses every result-table row with at least three cells. Sentinel
// or table-less markup yields a single NoCases entry.
func Extract(markup string) ([]Case, error) {
	if strings.TrimSpace(markup) == "" || models.IsSentinel(markup) {
		return []Case{NoCases}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse result markup: %w", err)
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return []Case{NoCases}, nil
	}

	var cases []Case
	tables.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 3 {
			return
		}
		cases = append(cases, Case{
			CaseTypeNumberYear:     collapse(cells.Eq(1).Text()),
			PetitionerVsRespondent: parties(cells.Eq(2)),
			CNRNumber:              cnrFromRow(row),
		})
	})

	if len(cases) == 0 {
		return []Case{NoCases}, nil
	}
	return cases, nil
}

// Records expands a search result into CNR table rows.
func Records(r models.SearchResult, processedAt time.Time) ([]models.CaseRecord, error) {
	cases, err := Extract(r.Content)
	if err != nil {
		return nil, err
	}

	out := make([]models.CaseRecord, 0, len(cases))
	for _, c := range cases {
		out = append(out, models.CaseRecord{
			ProcessedAt:            processedAt,
			ScrapedAt:              r.ScrapedAt,
			StateCode:              r.StateCode,
			DistrictCode:           r.DistrictCode,
			CourtCode:              r.CourtCode,
			EstablishmentCode:      r.EstablishmentCode,
			ActCode:                r.ActCode,
			SectionNumber:          r.SectionNumber,
			CaseStatus:             r.CaseStatus,
			CaseTypeNumberYear:     c.CaseTypeNumberYear,
			PetitionerVsRespondent: c.PetitionerVsRespondent,
			CNRNumber:              c.CNRNumber,
		})
	}
	return out, nil
}

// versus matches "Vs" as a word, so names such as "Vsevolod" are left alone.
var versus = regexp.MustCompile(`\bVs\b`)

// parties joins the cell's text nodes, splitting on <br> and spacing "Vs".
func parties(cell *goquery.Selection) string {
	var parts []string
	cell.Contents().Each(func(_ int, n *goquery.Selection) {
		if t := strings.TrimSpace(n.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, " ")
	return collapse(versus.ReplaceAllString(text, " Vs "))
}

// cnrFromRow returns the first single-quoted argument of the row's onclick handler.
func cnrFromRow(row *goquery.Selection) string {
	var cnr string
	row.Find("[onclick]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		parts := strings.Split(el.AttrOr("onclick", ""), "'")
		if len(parts) < 3 {
			return true
		}
		cnr = strings.TrimSpace(parts[1])
		return cnr == ""
	})
	return cnr
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
