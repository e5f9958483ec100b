package models

// Sentinel strings persisted in place of data the portal did not provide.
// Downstream parsers match these verbatim.
const (
	SentinelNoEstablishment = "E003: No court establishment found"
	SentinelNoActCodes      = "E005: No Act Codes list found"
	SentinelNoRecords       = "E006: No Records found"
	SentinelNoCNR           = "E007: No CNR numbers found as No Records Found"
	SentinelNoCaptcha       = "No captcha image found"
)

var sentinels = map[string]struct{}{
	SentinelNoEstablishment: {},
	SentinelNoActCodes:      {},
	SentinelNoRecords:       {},
	SentinelNoCNR:           {},
	SentinelNoCaptcha:       {},
}

// IsSentinel reports whether s is one of the catalogued sentinel strings.
func IsSentinel(s string) bool {
	_, ok := sentinels[s]
	return ok
}
