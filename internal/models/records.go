package models

import "time"

// Case status values accepted by the search form.
const (
	CaseStatusPending  = "Pending"
	CaseStatusDisposed = "Disposed"
)

// DefaultSection is the IPC section searched when none is configured.
const DefaultSection = "302"

// StateRecord is a row of the States table.
type StateRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// DistrictRecord is a row of the Districts table.
type DistrictRecord struct {
	StateCode string `json:"stateCode"`
	Name      string `json:"name"`
	Code      string `json:"code"`
}

// CourtRecord is a row of the Courts table: one complex/establishment pair of a district.
type CourtRecord struct {
	ID                int64     `json:"id"`
	ScrapedAt         time.Time `json:"scrapedAt"`
	StateCode         string    `json:"stateCode"`
	DistrictCode      string    `json:"districtCode"`
	CourtCode         string    `json:"courtCode"`
	CourtName         string    `json:"courtName"`
	EstablishmentCode string    `json:"establishmentCode"`
	EstablishmentName string    `json:"establishmentName"`
}

// Path rebuilds the jurisdiction path the court row was harvested from.
func (c CourtRecord) Path() JurisdictionPath {
	return JurisdictionPath{
		State:         Node{Code: c.StateCode},
		District:      Node{Code: c.DistrictCode},
		Complex:       Node{Code: c.CourtCode, Name: c.CourtName},
		Establishment: Node{Code: c.EstablishmentCode, Name: c.EstablishmentName},
	}
}

// Act is one act option offered by the portal.
type Act struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ActRecord is a row of the Acts table.
type ActRecord struct {
	ID                int64     `json:"id"`
	ScrapedAt         time.Time `json:"scrapedAt"`
	StateCode         string    `json:"stateCode"`
	DistrictCode      string    `json:"districtCode"`
	CourtCode         string    `json:"courtCode"`
	EstablishmentCode string    `json:"establishmentCode"`
	ActCode           string    `json:"actCode"`
	ActName           string    `json:"actName"`
}

// SearchResult is one append-only row of COURTS_HTML. Content holds either the
// captured markup or a sentinel string.
type SearchResult struct {
	ID                int64     `json:"id"`
	ScrapedAt         time.Time `json:"scrapedAt"`
	RunID             string    `json:"runId"`
	StateCode         string    `json:"stateCode"`
	DistrictCode      string    `json:"districtCode"`
	CourtCode         string    `json:"courtCode"`
	EstablishmentCode string    `json:"establishmentCode"`
	ActCode           string    `json:"actCode"`
	SectionNumber     string    `json:"sectionNumber"`
	CaseStatus        string    `json:"caseStatus"`
	Content           string    `json:"content"`
}

// Key returns the natural key consumers de-duplicate on.
func (r SearchResult) Key() ResultKey {
	return ResultKey{
		StateCode:         r.StateCode,
		DistrictCode:      r.DistrictCode,
		CourtCode:         r.CourtCode,
		EstablishmentCode: r.EstablishmentCode,
		ActCode:           r.ActCode,
		SectionNumber:     r.SectionNumber,
		CaseStatus:        r.CaseStatus,
	}
}

// IsSentinel reports whether the stored content is a sentinel rather than markup.
func (r SearchResult) IsSentinel() bool {
	return IsSentinel(r.Content)
}

// ResultKey is the natural key of a search result.
type ResultKey struct {
	StateCode         string
	DistrictCode      string
	CourtCode         string
	EstablishmentCode string
	ActCode           string
	SectionNumber     string
	CaseStatus        string
}

// CaseRecord is a derived row of the CNR table.
type CaseRecord struct {
	ID                     int64     `json:"id"`
	ProcessedAt            time.Time `json:"processedAt"`
	ScrapedAt              time.Time `json:"scrapedAt"`
	StateCode              string    `json:"stateCode"`
	DistrictCode           string    `json:"districtCode"`
	CourtCode              string    `json:"courtCode"`
	EstablishmentCode      string    `json:"establishmentCode"`
	ActCode                string    `json:"actCode"`
	SectionNumber          string    `json:"sectionNumber"`
	CaseStatus             string    `json:"caseStatus"`
	CaseTypeNumberYear     string    `json:"caseTypeNumberYear"`
	PetitionerVsRespondent string    `json:"petitionerVsRespondent"`
	CNRNumber              string    `json:"cnrNumber"`
}
