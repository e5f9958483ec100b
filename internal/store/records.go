package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// SaveStates bulk-inserts states. names and codes are parallel lists.
func (s *Store) SaveStates(ctx context.Context, names, codes []string) error {
	if len(names) != len(codes) {
		return fmt.Errorf("%w: %d state names, %d codes", ErrColumnMismatch, len(names), len(codes))
	}
	rows := make([][]any, len(names))
	for i := range names {
		rows[i] = []any{names[i], codes[i]}
	}
	return s.InsertMany(ctx, TableStates, []string{"state_name", "state_code"}, rows)
}

// SaveDistricts bulk-inserts the districts of one state. names and codes are parallel lists.
func (s *Store) SaveDistricts(ctx context.Context, stateCode string, names, codes []string) error {
	if len(names) != len(codes) {
		return fmt.Errorf("%w: %d district names, %d codes", ErrColumnMismatch, len(names), len(codes))
	}
	rows := make([][]any, len(names))
	for i := range names {
		rows[i] = []any{stateCode, names[i], codes[i]}
	}
	return s.InsertMany(ctx, TableDistricts, []string{"state_code", "district_name", "district_code"}, rows)
}

// SaveCourt appends one complex/establishment row.
func (s *Store) SaveCourt(ctx context.Context, c *models.CourtRecord) (int64, error) {
	return s.Insert(ctx, TableCourts, Row{
		Columns: []string{"date_scraped", "state_code", "district_code", "court_code", "court_name", "establishment_code", "establishment_name"},
		Values:  []any{formatTime(c.ScrapedAt), c.StateCode, c.DistrictCode, c.CourtCode, c.CourtName, c.EstablishmentCode, c.EstablishmentName},
	})
}

// SaveAct appends one act row.
func (s *Store) SaveAct(ctx context.Context, a *models.ActRecord) (int64, error) {
	return s.Insert(ctx, TableActs, Row{
		Columns: []string{"date_scraped", "state_code", "district_code", "court_code", "establishment_code", "act_code", "act_name"},
		Values:  []any{formatTime(a.ScrapedAt), a.StateCode, a.DistrictCode, a.CourtCode, a.EstablishmentCode, a.ActCode, a.ActName},
	})
}

// resultColumns is the canonical field order of a search result.
var resultColumns = []string{"date_scraped", "state_code", "district_code", "court_code", "establishment_code", "act_code", "section_number", "case_status", "html_content", "run_id"}

// SaveResult appends one search result.
func (s *Store) SaveResult(ctx context.Context, r *models.SearchResult) (int64, error) {
	id, err := s.Insert(ctx, TableResults, Row{
		Columns: resultColumns,
		Values: []any{
			formatTime(r.ScrapedAt),
			r.StateCode,
			r.DistrictCode,
			r.CourtCode,
			r.EstablishmentCode,
			r.ActCode,
			r.SectionNumber,
			r.CaseStatus,
			r.Content,
			r.RunID,
		},
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("search result persisted", "id", id, "run_id", r.RunID)
	return id, nil
}

// SaveCase appends one derived case row.
func (s *Store) SaveCase(ctx context.Context, c *models.CaseRecord) (int64, error) {
	return s.Insert(ctx, TableCases, Row{
		Columns: []string{"date_processed", "date_scraped", "state_code", "district_code", "court_code", "est_code", "act_code", "section_number", "case_status", "case_type_number_year", "petitioner_responder", "cnr_number"},
		Values: []any{
			formatTime(c.ProcessedAt),
			formatTime(c.ScrapedAt),
			c.StateCode,
			c.DistrictCode,
			c.CourtCode,
			c.EstablishmentCode,
			c.ActCode,
			c.SectionNumber,
			c.CaseStatus,
			c.CaseTypeNumberYear,
			c.PetitionerVsRespondent,
			c.CNRNumber,
		},
	})
}

// ListStates returns all states in insertion order.
func (s *Store) ListStates(ctx context.Context) ([]models.StateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, state_name, state_code FROM States ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	var out []models.StateRecord
	for rows.Next() {
		var r models.StateRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Code); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDistricts returns the districts of stateCode, or all districts when it is empty.
func (s *Store) ListDistricts(ctx context.Context, stateCode string) ([]models.DistrictRecord, error) {
	query := `SELECT state_code, district_name, district_code FROM Districts`
	var args []any
	if stateCode != "" {
		query += ` WHERE state_code = ?`
		args = append(args, stateCode)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	defer rows.Close()

	var out []models.DistrictRecord
	for rows.Next() {
		var r models.DistrictRecord
		if err := rows.Scan(&r.StateCode, &r.Name, &r.Code); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Filter narrows list queries. Zero fields match everything.
type Filter struct {
	StateCode    string
	DistrictCode string
	RunID        string
	Limit        int
}

func (f Filter) where(prefix string, withRun bool) (string, []any) {
	var conds []string
	var args []any
	if f.StateCode != "" {
		conds = append(conds, prefix+"state_code = ?")
		args = append(args, f.StateCode)
	}
	if f.DistrictCode != "" {
		conds = append(conds, prefix+"district_code = ?")
		args = append(args, f.DistrictCode)
	}
	if withRun && f.RunID != "" {
		conds = append(conds, prefix+"run_id = ?")
		args = append(args, f.RunID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f Filter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}

// ListCourts returns court rows in insertion order, de-duplicated on
// (state, district, court, establishment) keeping the earliest row.
func (s *Store) ListCourts(ctx context.Context, f Filter) ([]models.CourtRecord, error) {
	where, args := f.where("", false)
	query := `SELECT id, date_scraped, state_code, district_code, court_code, court_name,
		COALESCE(establishment_code, ''), COALESCE(establishment_name, '')
		FROM Courts WHERE id IN (
			SELECT MIN(id) FROM Courts` + where + `
			GROUP BY state_code, district_code, court_code, establishment_code
		) ORDER BY id` + f.limit()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	defer rows.Close()

	var out []models.CourtRecord
	for rows.Next() {
		var r models.CourtRecord
		var scraped string
		if err := rows.Scan(&r.ID, &scraped, &r.StateCode, &r.DistrictCode, &r.CourtCode, &r.CourtName, &r.EstablishmentCode, &r.EstablishmentName); err != nil {
			return nil, err
		}
		r.ScrapedAt = parseTime(scraped)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListActs returns act rows in insertion order.
func (s *Store) ListActs(ctx context.Context, f Filter) ([]models.ActRecord, error) {
	where, args := f.where("", false)
	query := `SELECT id, date_scraped, state_code, district_code, court_code,
		COALESCE(establishment_code, ''), act_code, act_name
		FROM Acts` + where + ` ORDER BY id` + f.limit()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list acts: %w", err)
	}
	defer rows.Close()

	var out []models.ActRecord
	for rows.Next() {
		var r models.ActRecord
		var scraped string
		if err := rows.Scan(&r.ID, &scraped, &r.StateCode, &r.DistrictCode, &r.CourtCode, &r.EstablishmentCode, &r.ActCode, &r.ActName); err != nil {
			return nil, err
		}
		r.ScrapedAt = parseTime(scraped)
		out = append(out, r)
	}
	return out, rows.Err()
}

const resultSelect = `SELECT id, date_scraped, state_code, district_code, court_code, establishment_code,
	act_code, section_number, case_status, html_content, run_id FROM COURTS_HTML`

// ListResults returns every stored search result in insertion order.
func (s *Store) ListResults(ctx context.Context, f Filter) ([]models.SearchResult, error) {
	where, args := f.where("", true)
	return s.queryResults(ctx, resultSelect+where+` ORDER BY id`+f.limit(), args...)
}

// ListLatestResults returns the newest result for each natural key.
func (s *Store) ListLatestResults(ctx context.Context, f Filter) ([]models.SearchResult, error) {
	where, args := f.where("", true)
	query := resultSelect + ` WHERE id IN (
		SELECT MAX(id) FROM COURTS_HTML` + where + `
		GROUP BY state_code, district_code, court_code, establishment_code, act_code, section_number, case_status
	) ORDER BY id` + f.limit()
	return s.queryResults(ctx, query, args...)
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]models.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var scraped string
		if err := rows.Scan(&r.ID, &scraped, &r.StateCode, &r.DistrictCode, &r.CourtCode, &r.EstablishmentCode,
			&r.ActCode, &r.SectionNumber, &r.CaseStatus, &r.Content, &r.RunID); err != nil {
			return nil, err
		}
		r.ScrapedAt = parseTime(scraped)
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasResult reports whether any result exists for the natural key, ignoring
// the act code when key.ActCode is empty.
func (s *Store) HasResult(ctx context.Context, key models.ResultKey) (bool, error) {
	query := `SELECT 1 FROM COURTS_HTML
		WHERE state_code = ? AND district_code = ? AND court_code = ? AND establishment_code = ?
		AND section_number = ? AND case_status = ?`
	args := []any{key.StateCode, key.DistrictCode, key.CourtCode, key.EstablishmentCode, key.SectionNumber, key.CaseStatus}
	if key.ActCode != "" {
		query += ` AND act_code = ?`
		args = append(args, key.ActCode)
	}
	query += ` LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check result: %w", err)
	}
	return true, nil
}

// ListCases returns derived case rows in insertion order.
func (s *Store) ListCases(ctx context.Context, f Filter) ([]models.CaseRecord, error) {
	where, args := f.where("", false)
	query := `SELECT id, date_processed, date_scraped, state_code, district_code, court_code, est_code,
		act_code, section_number, case_status, case_type_number_year, petitioner_responder, cnr_number
		FROM CNR` + where + ` ORDER BY id` + f.limit()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var out []models.CaseRecord
	for rows.Next() {
		var r models.CaseRecord
		var processed, scraped string
		if err := rows.Scan(&r.ID, &processed, &scraped, &r.StateCode, &r.DistrictCode, &r.CourtCode, &r.EstablishmentCode,
			&r.ActCode, &r.SectionNumber, &r.CaseStatus, &r.CaseTypeNumberYear, &r.PetitionerVsRespondent, &r.CNRNumber); err != nil {
			return nil, err
		}
		r.ProcessedAt = parseTime(processed)
		r.ScrapedAt = parseTime(scraped)
		out = append(out, r)
	}
	return out, rows.Err()
}
