// Package classifier turns raw call transcripts into structured availability
// verdicts. It is a keyword/substring heuristic, not NLU: the contract is the
// fixed precedence order below, and tests pin it.
package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Confidence grades how strongly the transcript supports the verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Verdict is the structured availability judgment for one transcript.
type Verdict struct {
	// MedicationFound reports whether the transcript said anything usable
	// about availability at all.
	MedicationFound bool       `json:"medication_found"`
	Available       bool       `json:"available"`
	Confidence      Confidence `json:"confidence"`

	// Quantity is "unknown" unless the transcript stated one.
	Quantity string `json:"quantity"`

	// Price is nil when no dollar amount was heard.
	Price *float64 `json:"price,omitempty"`
}

// Keyword lexicons. Matching is plain substring over the lowercased
// transcript, so "no" also matches inside "now"; that looseness is accepted.
var (
	positiveKeywords = []string{"yes", "available", "in stock", "have it", "we have", "stock"}
	negativeKeywords = []string{"no", "not available", "out of stock", "don't have", "unavailable"}
	partialKeywords  = []string{"limited", "few left", "running low", "small quantity"}
)

var (
	priceRe    = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
	quantityRe = regexp.MustCompile(`(\d+)\s*(tablets?|pills?|bottles?|capsules?)`)
)

// Classify maps a transcript to a Verdict. It is total and deterministic:
// any string, including empty, yields a verdict and never an error.
//
// The checks run in a fixed order and later matches overwrite earlier ones:
// positive, then negative (negative wins when both lexicons match), then
// partial (which wins over both). Price and quantity extraction run last and
// are independent of the availability outcome.
func Classify(text string) Verdict {
	lowered := strings.ToLower(text)

	v := Verdict{
		Available:  false,
		Confidence: ConfidenceLow,
		Quantity:   "unknown",
	}

	if containsAny(lowered, positiveKeywords) {
		v.Available = true
		v.Confidence = ConfidenceHigh
		v.MedicationFound = true
	}

	if containsAny(lowered, negativeKeywords) {
		v.Available = false
		v.Confidence = ConfidenceHigh
		v.MedicationFound = true
	}

	if containsAny(lowered, partialKeywords) {
		v.Available = true
		v.Confidence = ConfidenceMedium
		v.Quantity = "limited"
		v.MedicationFound = true
	}

	if m := priceRe.FindStringSubmatch(lowered); m != nil {
		if p, err := strconv.ParseFloat(m[1], 64); err == nil {
			v.Price = &p
		}
	}

	if m := quantityRe.FindStringSubmatch(lowered); m != nil {
		v.Quantity = m[1] + " " + m[2]
	}

	return v
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
