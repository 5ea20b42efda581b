// Package storage defines the persistence interface for patient records.
package storage

import (
	"context"
	"errors"

	"github.com/carebook/carebook/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePatient is returned when registering an already-registered patient ID.
	ErrDuplicatePatient = errors.New("patient already registered")

	// ErrInvalidTransition is returned when an appointment status update is not
	// allowed. Only pending appointments may be accepted or rejected.
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// Store defines appointment, credential, and suggestion persistence operations.
type Store interface {
	// Appointment operations
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context) ([]*models.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*models.Appointment, error)
	// UpdateAppointmentStatus moves a pending appointment to accepted or
	// rejected. Any other transition returns ErrInvalidTransition.
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error

	// Credential operations
	CreateCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, patientID string) (*models.Credential, error)
	UpdatePassword(ctx context.Context, patientID, passwordHash string) error

	// Suggestion operations
	AppendSuggestion(ctx context.Context, s *models.Suggestion) error
	ListSuggestionsByPatient(ctx context.Context, patientID string) ([]*models.Suggestion, error)

	// Stats
	CountAppointments(ctx context.Context) (int64, error)
	CountCredentials(ctx context.Context) (int64, error)

	Close() error
}
