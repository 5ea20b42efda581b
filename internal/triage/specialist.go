package triage

import (
	"net/url"
	"strings"

	"github.com/carebook/carebook/internal/models"
)

const mapsSearchBase = "https://www.google.com/maps/search/"

// FallbackSpecialist is returned when no category keyword matches.
const FallbackSpecialist = "General Practitioner"

// specialistRule associates a specialist label with its symptom keywords.
// Rules are scored by counting keyword substring hits; ties keep the first
// maximum in declared order, so the order below is part of the contract.
type specialistRule struct {
	label    string
	keywords []string
}

var specialistRules = []specialistRule{
	{"Cardiologist", []string{"chest pain", "heart", "cardiac", "palpitations", "blood pressure", "cardiovascular"}},
	{"Dermatologist", []string{"rash", "skin", "acne", "eczema", "psoriasis", "itching", "blister"}},
	{"Neurologist", []string{"headache", "migraine", "seizure", "dizziness", "numbness", "stroke", "neuropathy"}},
	{"Orthopedic", []string{"bone", "fracture", "joint", "arthritis", "sprain", "back pain"}},
	{"Pulmonologist", []string{"breathing", "asthma", "cough", "lung", "bronchitis", "shortness of breath"}},
	{"Gastroenterologist", []string{"stomach", "abdominal pain", "diarrhea", "constipation", "nausea", "vomiting", "liver"}},
	{"Psychiatrist", []string{"depression", "anxiety", "suicide", "mental health", "stress"}},
}

// InferSpecialist picks the specialist whose keyword list has the most
// substring hits in the symptom text. Ties go to the earliest declared
// category; zero hits fall back to the General Practitioner.
func InferSpecialist(symptoms string) string {
	lower := strings.ToLower(symptoms)

	best := ""
	bestCount := 0
	for _, rule := range specialistRules {
		count := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			best = rule.label
			bestCount = count
		}
	}
	if bestCount == 0 {
		return FallbackSpecialist
	}
	return best
}

// MapsSearchURL builds a Google Maps search link for finding the specialist
// near the given location. The query is percent-encoded.
func MapsSearchURL(specialist, location string) string {
	return mapsSearchBase + url.PathEscape(specialist+" near "+location)
}

// Route combines specialist inference and the map link into a Referral.
func Route(symptoms, location string) models.Referral {
	specialist := InferSpecialist(symptoms)
	return models.Referral{
		Specialist: specialist,
		MapsURL:    MapsSearchURL(specialist, location),
	}
}
