package store

import "slices"

// Table names.
const (
	TableStates    = "States"
	TableDistricts = "Districts"
	TableCourts    = "Courts"
	TableActs      = "Acts"
	TableResults   = "COURTS_HTML"
	TableCases     = "CNR"
)

// table is the DDL and insertable columns of one table.
type table struct {
	ddl     string
	columns []string
	indexes []string
}

var schemas = map[string]table{
	TableStates: {
		ddl: `CREATE TABLE IF NOT EXISTS States (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	state_name TEXT NOT NULL,
	state_code TEXT NOT NULL
)`,
		columns: []string{"state_name", "state_code"},
	},
	TableDistricts: {
		ddl: `CREATE TABLE IF NOT EXISTS Districts (
	state_code TEXT NOT NULL,
	district_name TEXT NOT NULL,
	district_code TEXT NOT NULL
)`,
		columns: []string{"state_code", "district_name", "district_code"},
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_districts_state ON Districts(state_code)`},
	},
	TableCourts: {
		ddl: `CREATE TABLE IF NOT EXISTS Courts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date_scraped TEXT NOT NULL,
	state_code TEXT NOT NULL,
	district_code TEXT NOT NULL,
	court_code TEXT NOT NULL,
	court_name TEXT NOT NULL,
	establishment_code TEXT,
	establishment_name TEXT
)`,
		columns: []string{"date_scraped", "state_code", "district_code", "court_code", "court_name", "establishment_code", "establishment_name"},
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_courts_district ON Courts(state_code, district_code)`},
	},
	TableActs: {
		ddl: `CREATE TABLE IF NOT EXISTS Acts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date_scraped TEXT NOT NULL,
	state_code TEXT NOT NULL,
	district_code TEXT NOT NULL,
	court_code TEXT NOT NULL,
	establishment_code TEXT,
	act_code TEXT NOT NULL,
	act_name TEXT NOT NULL
)`,
		columns: []string{"date_scraped", "state_code", "district_code", "court_code", "establishment_code", "act_code", "act_name"},
	},
	TableResults: {
		ddl: `CREATE TABLE IF NOT EXISTS COURTS_HTML (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date_scraped TEXT NOT NULL,
	state_code TEXT NOT NULL,
	district_code TEXT NOT NULL,
	court_code TEXT NOT NULL,
	establishment_code TEXT NOT NULL,
	act_code TEXT NOT NULL,
	section_number TEXT NOT NULL DEFAULT '',
	case_status TEXT NOT NULL,
	html_content TEXT NOT NULL,
	run_id TEXT NOT NULL DEFAULT ''
)`,
		columns: []string{"date_scraped", "state_code", "district_code", "court_code", "establishment_code", "act_code", "section_number", "case_status", "html_content", "run_id"},
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_courts_html_key ON COURTS_HTML(state_code, district_code, court_code, establishment_code, act_code, section_number, case_status)`},
	},
	TableCases: {
		ddl: `CREATE TABLE IF NOT EXISTS CNR (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date_processed TEXT NOT NULL,
	date_scraped TEXT NOT NULL,
	state_code TEXT NOT NULL,
	district_code TEXT NOT NULL,
	court_code TEXT NOT NULL,
	est_code TEXT NOT NULL,
	act_code TEXT NOT NULL,
	section_number TEXT NOT NULL,
	case_status TEXT NOT NULL,
	case_type_number_year TEXT NOT NULL,
	petitioner_responder TEXT NOT NULL,
	cnr_number TEXT NOT NULL
)`,
		columns: []string{"date_processed", "date_scraped", "state_code", "district_code", "court_code", "est_code", "act_code", "section_number", "case_status", "case_type_number_year", "petitioner_responder", "cnr_number"},
	},
}

// Tables returns every known table name in creation order.
func Tables() []string {
	return []string{TableStates, TableDistricts, TableCourts, TableActs, TableResults, TableCases}
}

// Columns returns the insertable columns of a table.
func Columns(name string) ([]string, bool) {
	t, ok := schemas[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(t.columns), true
}
