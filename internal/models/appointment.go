// Package models defines core data structures for appointments, credentials, and the knowledge base.
package models

import "time"

// AppointmentStatus is the review state of an appointment.
type AppointmentStatus string

const (
	StatusPending  AppointmentStatus = "Pending"
	StatusAccepted AppointmentStatus = "Accepted"
	StatusRejected AppointmentStatus = "Rejected"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
// Only Pending appointments may move to Accepted or Rejected.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Appointment is a booked appointment record. The triage assessment computed
// at booking time is folded into the record; the record is mutated only by a
// doctor's status decision and never deleted.
type Appointment struct {
	ID                 string            `json:"id" db:"id"`
	PatientID          string            `json:"patient_id" db:"patient_id"`
	Name               string            `json:"name" db:"name"`
	Age                string            `json:"age" db:"age"`
	Location           string            `json:"location" db:"location"`
	Symptoms           string            `json:"symptoms" db:"symptoms"`
	PreferredHospital  string            `json:"preferred_hospital" db:"preferred_hospital"`
	UrgencyScore       int               `json:"urgency_score" db:"urgency_score"`
	TimeRecommendation string            `json:"time_recommendation" db:"time_recommendation"`
	KeySymptoms        string            `json:"key_symptoms" db:"key_symptoms"`
	Notes              string            `json:"notes" db:"notes"`
	BookingTime        time.Time         `json:"booking_time" db:"booking_time"`
	Status             AppointmentStatus `json:"status" db:"status"`
}
