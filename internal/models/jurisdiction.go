// Package models defines the domain types shared by the crawler components.
package models

import "strings"

// Option is one entry of a dropdown as read from the page.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Node is one level of a jurisdiction path.
type Node struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// NodeFromOption converts a harvested option to a node.
func NodeFromOption(o Option) Node {
	return Node{Code: o.Value, Name: o.Label}
}

// IsZero reports whether the node is unset.
func (n Node) IsZero() bool {
	return n.Code == "" && n.Name == ""
}

// NoEstablishment is the node recorded when a court complex has no establishment dropdown.
var NoEstablishment = Node{Code: SentinelNoEstablishment, Name: SentinelNoEstablishment}

// JurisdictionPath identifies one court unit on the portal.
type JurisdictionPath struct {
	State         Node `json:"state"`
	District      Node `json:"district"`
	Complex       Node `json:"complex"`
	Establishment Node `json:"establishment"`
}

// HasEstablishment reports whether the path carries a real establishment code.
func (p JurisdictionPath) HasEstablishment() bool {
	return p.Establishment.Code != "" && !IsSentinel(p.Establishment.Code)
}

// EstablishmentCode returns the code to send for the establishment level,
// empty when the complex has none.
func (p JurisdictionPath) EstablishmentCode() string {
	if !p.HasEstablishment() {
		return ""
	}
	return p.Establishment.Code
}

// String renders the path as slash-separated codes, stopping at the first unset level.
func (p JurisdictionPath) String() string {
	parts := make([]string, 0, 4)
	for _, n := range []Node{p.State, p.District, p.Complex} {
		if n.Code == "" {
			break
		}
		parts = append(parts, n.Code)
	}
	if len(parts) == 3 && p.HasEstablishment() {
		parts = append(parts, p.Establishment.Code)
	}
	return strings.Join(parts, "/")
}

// ComplexCode strips the portal's "@"-suffixed qualifiers from a court complex value
// ("1280004@2,3@N" -> "1280004").
func ComplexCode(raw string) string {
	code, _, _ := strings.Cut(raw, "@")
	return strings.TrimSpace(code)
}
