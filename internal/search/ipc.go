package search

import (
	"regexp"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// IPCPattern matches act names of the Indian Penal Code, anchored at the start.
var IPCPattern = regexp.MustCompile(`(?i)^(I.P.C|IPC|Indian Penal Code)\b.*`)

// IsIPC reports whether an act name refers to the Indian Penal Code.
func IsIPC(name string) bool {
	return IPCPattern.MatchString(name)
}

// FilterIPC keeps the IPC act options, in order.
func FilterIPC(opts []models.Option) []models.Option {
	out := make([]models.Option, 0, len(opts))
	for _, o := range opts {
		if IsIPC(o.Label) {
			out = append(out, o)
		}
	}
	return out
}

// FilterIPCActs keeps the IPC acts that carry a code, in order.
func FilterIPCActs(acts []models.Act) []models.Act {
	out := make([]models.Act, 0, len(acts))
	for _, a := range acts {
		if a.Code != "" && IsIPC(a.Name) {
			out = append(out, a)
		}
	}
	return out
}
