package models

// Credential is a patient login record keyed by patient ID. Created at
// registration, mutated only by a password change, never deleted.
type Credential struct {
	PatientID    string `json:"patient_id" db:"patient_id"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"password" db:"password_hash"`
}
