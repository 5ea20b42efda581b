package models

// TriageResult is the deterministic urgency assessment derived from a
// free-text symptom description. It is immutable once computed and is not
// persisted on its own: booking folds it into the Appointment record.
type TriageResult struct {
	// UrgencyScore is 1-10; higher means more urgent.
	UrgencyScore       int    `json:"urgency_score"`
	TimeRecommendation string `json:"time_recommendation"`
	// KeySymptoms is the symptom text truncated to a short excerpt.
	KeySymptoms string `json:"key_symptoms"`
	Notes       string `json:"notes"`
}

// Referral is a specialist suggestion with a map-search link for finding
// one near the patient's location.
type Referral struct {
	Specialist string `json:"specialist"`
	MapsURL    string `json:"maps_url"`
}
