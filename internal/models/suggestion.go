package models

import "time"

// Suggestion is a doctor's comment on one uploaded prescription file.
// Suggestions are append-only: never updated, never deleted.
type Suggestion struct {
	ID        string    `json:"id,omitempty" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	PatientID string    `json:"patient_id" db:"patient_id"`
	Filename  string    `json:"filename" db:"filename"`
	Text      string    `json:"text" db:"text"`
}
