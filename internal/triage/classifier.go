// Package triage provides rule-based symptom urgency classification and
// specialist routing. Both are pure functions over the symptom text: fixed
// keyword tables, no stored state, identical input always yields identical
// output.
package triage

import (
	"strings"

	"github.com/carebook/carebook/internal/models"
	"github.com/carebook/carebook/pkg/utils"
)

// keySymptomsLen is the excerpt length kept in TriageResult.KeySymptoms.
const keySymptomsLen = 50

// urgencyTier maps a keyword list to a fixed assessment. Tiers are evaluated
// in declared order and the first tier with any keyword present wins; there
// is no scoring or summation across tiers.
type urgencyTier struct {
	keywords           []string
	score              int
	timeRecommendation string
	notes              string
}

// urgencyTiers is the ordered rule table: emergency, high, medium, low.
var urgencyTiers = []urgencyTier{
	{
		keywords: []string{
			"chest pain", "heart attack", "difficulty breathing", "can't breathe",
			"severe bleeding", "unconscious", "suicide", "overdose", "stroke",
			"severe head injury", "broken bone", "severe burn",
		},
		score:              9,
		timeRecommendation: "IMMEDIATE - Go to Emergency Room",
		notes:              "EMERGENCY: Seek immediate medical attention or call emergency services!",
	},
	{
		keywords: []string{
			"high fever", "severe pain", "intense pain", "can't walk",
			"severe headache", "vomiting blood", "severe nausea", "dehydrated",
			"severe diarrhea", "severe allergic reaction", "swollen", "infection",
		},
		score:              8,
		timeRecommendation: "Same-day",
		notes:              "High priority - Schedule appointment today or visit urgent care",
	},
	{
		keywords: []string{
			"fever", "headache", "nausea", "vomiting", "diarrhea", "pain",
			"cough", "cold", "flu", "sore throat", "earache", "rash",
			"tired", "fatigue", "dizzy", "stomach ache",
		},
		score:              6,
		timeRecommendation: "Within 1-2 days",
		notes:              "Schedule appointment soon for evaluation and treatment",
	},
	{
		keywords: []string{
			"checkup", "routine", "physical", "vaccination", "prescription",
			"mild pain", "slight discomfort", "general consultation",
		},
		score:              3,
		timeRecommendation: "Within 1-2 weeks",
		notes:              "Routine consultation - schedule at your convenience",
	},
}

// Default assessment when no tier keyword matches.
const (
	defaultScore              = 5
	defaultTimeRecommendation = "Next day"
	defaultNotes              = "Please consult with healthcare provider for proper diagnosis"
)

// Classify maps a free-text symptom description to an urgency assessment.
//
// The matching is substring-based on the lowercased input, so overlapping
// terms compound: "severe pain" selects the high-urgency tier AND triggers
// the standalone "severe" adjustment. That double-counting is part of the
// rule design and is kept as-is.
func Classify(symptoms string) models.TriageResult {
	lower := strings.ToLower(strings.TrimSpace(symptoms))

	result := models.TriageResult{
		UrgencyScore:       defaultScore,
		TimeRecommendation: defaultTimeRecommendation,
		KeySymptoms:        utils.Truncate(symptoms, keySymptomsLen),
		Notes:              defaultNotes,
	}

	for _, tier := range urgencyTiers {
		if containsAny(lower, tier.keywords) {
			result.UrgencyScore = tier.score
			result.TimeRecommendation = tier.timeRecommendation
			result.Notes = tier.notes
			break
		}
	}

	// Severity adjustments apply unconditionally, after tier selection.
	if strings.Contains(lower, "severe") {
		result.UrgencyScore = min(result.UrgencyScore+2, 10)
	}
	if strings.Contains(lower, "mild") {
		result.UrgencyScore = max(result.UrgencyScore-1, 1)
	}

	return result
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
