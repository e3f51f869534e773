package risk

import (
	"fmt"
	"strings"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Lexicons for the pattern analysis layer. Matching runs over the raw
// segment text, not the extracted fields, so wording that never parses
// into a field still counts.
var scamKeywords = []string{
	"urgent",
	"verify",
	"suspended",
	"click",
	"link",
	"prize",
	"winner",
	"claim",
	"confirm",
	"update",
	"action required",
	"account compromised",
}

var impersonatedInstitutions = []string{
	"bank of ghana",
	"gra",
	"ssnit",
	"ecg",
	"ghana water",
	"police",
	"court",
}

var suspiciousPhrases = []string{
	"tax payment",
	"clearance fee",
	"processing fee",
	"activation fee",
}

// Per-hit weights and the institution flat score.
const (
	keywordWeight    = 10
	institutionScore = 30
	phraseWeight     = 20
)

// AnalyzePatterns runs the lexical scam-pattern layer over raw text.
func AnalyzePatterns(rawText string) (domain.LayerResult, domain.PatternDetail) {
	lower := strings.ToLower(rawText)

	var matches []string

	keywordHits := 0
	for _, kw := range scamKeywords {
		if strings.Contains(lower, kw) {
			keywordHits++
			matches = append(matches, kw)
		}
	}

	institution := ""
	for _, name := range impersonatedInstitutions {
		if strings.Contains(lower, name) {
			institution = name
			matches = append(matches, name)
			break
		}
	}

	phraseHits := 0
	var phrases []string
	for _, ph := range suspiciousPhrases {
		if strings.Contains(lower, ph) {
			phraseHits++
			phrases = append(phrases, ph)
			matches = append(matches, ph)
		}
	}

	keywordScore := min(100, keywordHits*keywordWeight)
	instScore := 0
	if institution != "" {
		instScore = institutionScore
	}
	phraseScore := phraseHits * phraseWeight

	total := min(100, keywordScore+instScore+phraseScore)

	var factors []string
	if keywordHits > 0 {
		factors = append(factors, fmt.Sprintf("scam keywords detected (%d)", keywordHits))
	}
	if institution != "" {
		factors = append(factors, "impersonates known institution: "+institution)
	}
	for _, ph := range phrases {
		factors = append(factors, "suspicious phrase: "+ph)
	}

	status := domain.LayerStatusPass
	if total > 0 {
		status = domain.LayerStatusScored
	}

	result := domain.LayerResult{
		Layer:   domain.LayerPattern,
		Name:    domain.LayerName(domain.LayerPattern),
		Status:  status,
		Score:   total,
		Factors: factors,
	}

	detail := domain.PatternDetail{
		KeywordHits:    keywordHits,
		PhraseHits:     phraseHits,
		InstitutionHit: institution != "",
		Matches:        matches,
	}

	return result, detail
}
