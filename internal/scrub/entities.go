package scrub

import "regexp"

// EntityType classifies a detected PII entity. DefaultEntityTypes is
// the set scanned for when a Gate is not otherwise configured.
type EntityType string

const (
	EntityEmail           EntityType = "EMAIL"
	EntityPhone           EntityType = "PHONE"
	EntityIPAddress       EntityType = "IP_ADDRESS"
	EntityPerson          EntityType = "PERSON"
	EntityCreditCard      EntityType = "CREDIT_CARD"
	EntitySSN             EntityType = "SSN"
	EntityMedicalLicense  EntityType = "MEDICAL_LICENSE"
	EntityUSDriverLicense EntityType = "US_DRIVER_LICENSE"
	EntityLocation        EntityType = "LOCATION"
	EntityDateTime        EntityType = "DATE_TIME"
)

// DefaultEntityTypes is the entity set an EntityAnalyzer scans for when
// none is configured.
var DefaultEntityTypes = []EntityType{
	EntityEmail, EntityPhone, EntityIPAddress, EntityPerson, EntityCreditCard,
	EntitySSN, EntityMedicalLicense, EntityUSDriverLicense, EntityLocation, EntityDateTime,
}

type entityPattern struct {
	Type    EntityType
	Pattern *regexp.Regexp
}

// entityPatterns are scanned in order. A pattern with a capture group
// reports the group's span as the match, so a keyword-anchored
// recognizer (MRN, driver's license) redacts the identifier without
// eating its label.
var entityPatterns = []entityPattern{
	{EntityEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{EntitySSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{EntityCreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{EntityPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)},
	{EntityIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	// MRNs vary by institution; both the numeric and the
	// prefix+alphanumeric shapes need the keyword anchor to avoid
	// swallowing arbitrary 6-10 digit numbers.
	{EntityMedicalLicense, regexp.MustCompile(`\b(?:MRN|Medical Record|Patient ID)[:\s#]*([0-9]{6,10})\b`)},
	{EntityMedicalLicense, regexp.MustCompile(`\b(?:MRN|Medical Record)[:\s#]*([A-Z]{2,3}[0-9]{6,8})\b`)},
	{EntityUSDriverLicense, regexp.MustCompile(`(?i)\b(?:driver'?s?\s+licen[cs]e|DL)[:\s#]+([A-Z]{1,2}[0-9]{5,8})\b`)},
	// LOCATION covers street addresses only; free-form place names
	// need the NER-backed analyzer.
	{EntityLocation, regexp.MustCompile(`\b\d{1,5} [A-Z][a-z]+(?: [A-Z][a-z]+)? (?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)\b`)},
	{EntityDateTime, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?\b`)},
	{EntityDateTime, regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}\b`)},
	// PERSON is a coarse heuristic, not an NER model: two consecutive
	// capitalized words. The analyzer is a pluggable stand-in, so a
	// model-backed recognizer can replace this wholesale.
	{EntityPerson, regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)},
}

// EntityMatch is one detected entity with its byte range and surface
// text, used by the pseudonymizer as the cache key.
type EntityMatch struct {
	Start   int
	End     int
	Type    EntityType
	Surface string
}

// EntityAnalyzer scans text for the configured entity types. It is a
// regex-based stand-in for a real NER model behind the same pluggable
// boundary, so swapping in a model-backed analyzer later requires no
// change to the gate.
type EntityAnalyzer struct {
	types []EntityType
}

// NewEntityAnalyzer builds an EntityAnalyzer over the given entity
// types, defaulting to DefaultEntityTypes when none are given.
func NewEntityAnalyzer(types ...EntityType) *EntityAnalyzer {
	if len(types) == 0 {
		types = DefaultEntityTypes
	}
	return &EntityAnalyzer{types: types}
}

// Detect returns every entity match in text.
func (a *EntityAnalyzer) Detect(text string) []EntityMatch {
	enabled := make(map[EntityType]struct{}, len(a.types))
	for _, t := range a.types {
		enabled[t] = struct{}{}
	}

	var out []EntityMatch
	for _, p := range entityPatterns {
		if _, ok := enabled[p.Type]; !ok {
			continue
		}
		for _, loc := range p.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}
			out = append(out, EntityMatch{Start: start, End: end, Type: p.Type, Surface: text[start:end]})
		}
	}
	return out
}
