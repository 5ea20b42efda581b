// Package storage provides SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carebook/carebook/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		name TEXT,
		age TEXT,
		location TEXT,
		symptoms TEXT,
		preferred_hospital TEXT,
		urgency_score INTEGER NOT NULL,
		time_recommendation TEXT,
		key_symptoms TEXT,
		notes TEXT,
		booking_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_patient_id ON appointments(patient_id);
	CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status);

	CREATE TABLE IF NOT EXISTS credentials (
		patient_id TEXT PRIMARY KEY,
		email TEXT,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		patient_id TEXT NOT NULL,
		filename TEXT,
		text TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_suggestions_patient_id ON suggestions(patient_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateAppointment inserts an appointment.
func (s *SQLiteStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.BookingTime.IsZero() {
		appt.BookingTime = time.Now()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (id, patient_id, name, age, location, symptoms,
		 preferred_hospital, urgency_score, time_recommendation, key_symptoms, notes,
		 booking_time, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.PatientID, appt.Name, appt.Age, appt.Location, appt.Symptoms,
		appt.PreferredHospital, appt.UrgencyScore, appt.TimeRecommendation,
		appt.KeySymptoms, appt.Notes, appt.BookingTime, appt.Status,
	)
	return err
}

// GetAppointment returns an appointment by ID.
func (s *SQLiteStore) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := scanAppointment(s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, name, age, location, symptoms, preferred_hospital,
		 urgency_score, time_recommendation, key_symptoms, notes, booking_time, status
		 FROM appointments WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return appt, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appt models.Appointment
	err := row.Scan(&appt.ID, &appt.PatientID, &appt.Name, &appt.Age, &appt.Location,
		&appt.Symptoms, &appt.PreferredHospital, &appt.UrgencyScore,
		&appt.TimeRecommendation, &appt.KeySymptoms, &appt.Notes,
		&appt.BookingTime, &appt.Status)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments returns all appointments ordered by booking time.
func (s *SQLiteStore) ListAppointments(ctx context.Context) ([]*models.Appointment, error) {
	return s.queryAppointments(ctx,
		`SELECT id, patient_id, name, age, location, symptoms, preferred_hospital,
		 urgency_score, time_recommendation, key_symptoms, notes, booking_time, status
		 FROM appointments ORDER BY booking_time`)
}

// ListAppointmentsByPatient returns a patient's appointments ordered by booking time.
func (s *SQLiteStore) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*models.Appointment, error) {
	return s.queryAppointments(ctx,
		`SELECT id, patient_id, name, age, location, symptoms, preferred_hospital,
		 urgency_score, time_recommendation, key_symptoms, notes, booking_time, status
		 FROM appointments WHERE patient_id = ? ORDER BY booking_time`, patientID)
}

func (s *SQLiteStore) queryAppointments(ctx context.Context, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// UpdateAppointmentStatus moves a pending appointment to accepted or rejected.
func (s *SQLiteStore) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	if !status.Terminal() {
		return ErrInvalidTransition
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.AppointmentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM appointments WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current != models.StatusPending {
		return ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, status, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateCredential inserts a credential record. Registering an existing
// patient ID returns ErrDuplicatePatient and leaves the first record intact.
func (s *SQLiteStore) CreateCredential(ctx context.Context, cred *models.Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE patient_id = ?`, cred.PatientID).Scan(&exists)
	if err == nil {
		return ErrDuplicatePatient
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (patient_id, email, password_hash) VALUES (?, ?, ?)`,
		cred.PatientID, cred.Email, cred.PasswordHash,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetCredential returns a credential by patient ID.
func (s *SQLiteStore) GetCredential(ctx context.Context, patientID string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT patient_id, email, password_hash FROM credentials WHERE patient_id = ?`,
		patientID,
	).Scan(&cred.PatientID, &cred.Email, &cred.PasswordHash)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// UpdatePassword replaces the stored password hash for a patient.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, patientID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ? WHERE patient_id = ?`,
		passwordHash, patientID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendSuggestion inserts a suggestion record.
func (s *SQLiteStore) AppendSuggestion(ctx context.Context, sug *models.Suggestion) error {
	if sug.CreatedAt.IsZero() {
		sug.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestions (id, created_at, patient_id, filename, text)
		 VALUES (?, ?, ?, ?, ?)`,
		sug.ID, sug.CreatedAt, sug.PatientID, sug.Filename, sug.Text,
	)
	return err
}

// ListSuggestionsByPatient returns a patient's suggestions ordered by creation time.
func (s *SQLiteStore) ListSuggestionsByPatient(ctx context.Context, patientID string) ([]*models.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, patient_id, filename, text
		 FROM suggestions WHERE patient_id = ? ORDER BY created_at`,
		patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sugs []*models.Suggestion
	for rows.Next() {
		var sug models.Suggestion
		if err := rows.Scan(&sug.ID, &sug.CreatedAt, &sug.PatientID, &sug.Filename, &sug.Text); err != nil {
			return nil, err
		}
		sugs = append(sugs, &sug)
	}
	return sugs, rows.Err()
}

// CountAppointments returns the total number of appointments.
func (s *SQLiteStore) CountAppointments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&count)
	return count, err
}

// CountCredentials returns the total number of registered patients.
func (s *SQLiteStore) CountCredentials(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
