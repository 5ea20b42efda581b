package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/carebook/carebook/internal/models"
)

const (
	appointmentsFile = "appointments.json"
	credentialsFile  = "credentials.json"
	suggestionsFile  = "suggestions.txt"

	suggestionTimeLayout = "2006-01-02 15:04:05"
)

// FileStore implements Store on flat files under a data directory:
// appointments.json holds an array of appointment records, credentials.json a
// map keyed by patient ID, and suggestions.txt one comma-separated line per
// suggestion. Writes rewrite the whole file (suggestions append). Missing or
// malformed files read as empty rather than failing.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the data directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FileStore) loadAppointments() []*models.Appointment {
	data, err := os.ReadFile(f.path(appointmentsFile))
	if err != nil {
		return nil
	}
	var appts []*models.Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		return nil
	}
	return appts
}

func (f *FileStore) saveAppointments(appts []*models.Appointment) error {
	data, err := json.MarshalIndent(appts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(appointmentsFile), data, 0644)
}

// CreateAppointment appends an appointment and rewrites the file.
func (f *FileStore) CreateAppointment(_ context.Context, appt *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if appt.BookingTime.IsZero() {
		appt.BookingTime = time.Now()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}

	appts := f.loadAppointments()
	appts = append(appts, appt)
	return f.saveAppointments(appts)
}

// GetAppointment returns an appointment by ID.
func (f *FileStore) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, appt := range f.loadAppointments() {
		if appt.ID == id {
			return appt, nil
		}
	}
	return nil, ErrNotFound
}

// ListAppointments returns all appointments in file order.
func (f *FileStore) ListAppointments(_ context.Context) ([]*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadAppointments(), nil
}

// ListAppointmentsByPatient returns a patient's appointments in file order.
func (f *FileStore) ListAppointmentsByPatient(_ context.Context, patientID string) ([]*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Appointment
	for _, appt := range f.loadAppointments() {
		if appt.PatientID == patientID {
			out = append(out, appt)
		}
	}
	return out, nil
}

// UpdateAppointmentStatus moves a pending appointment to accepted or rejected.
func (f *FileStore) UpdateAppointmentStatus(_ context.Context, id string, status models.AppointmentStatus) error {
	if !status.Terminal() {
		return ErrInvalidTransition
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	appts := f.loadAppointments()
	for _, appt := range appts {
		if appt.ID != id {
			continue
		}
		if appt.Status != models.StatusPending {
			return ErrInvalidTransition
		}
		appt.Status = status
		return f.saveAppointments(appts)
	}
	return ErrNotFound
}

func (f *FileStore) loadCredentials() map[string]*models.Credential {
	creds := make(map[string]*models.Credential)
	data, err := os.ReadFile(f.path(credentialsFile))
	if err != nil {
		return creds
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return make(map[string]*models.Credential)
	}
	return creds
}

func (f *FileStore) saveCredentials(creds map[string]*models.Credential) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(credentialsFile), data, 0644)
}

// CreateCredential inserts a credential record. Registering an existing
// patient ID returns ErrDuplicatePatient and leaves the first record intact.
func (f *FileStore) CreateCredential(_ context.Context, cred *models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds := f.loadCredentials()
	if _, ok := creds[cred.PatientID]; ok {
		return ErrDuplicatePatient
	}
	creds[cred.PatientID] = cred
	return f.saveCredentials(creds)
}

// GetCredential returns a credential by patient ID.
func (f *FileStore) GetCredential(_ context.Context, patientID string) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cred, ok := f.loadCredentials()[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return cred, nil
}

// UpdatePassword replaces the stored password hash for a patient.
func (f *FileStore) UpdatePassword(_ context.Context, patientID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds := f.loadCredentials()
	cred, ok := creds[patientID]
	if !ok {
		return ErrNotFound
	}
	cred.PasswordHash = passwordHash
	return f.saveCredentials(creds)
}

// AppendSuggestion appends one line to suggestions.txt. Commas inside the
// suggestion text survive because reads split on at most four fields.
func (f *FileStore) AppendSuggestion(_ context.Context, sug *models.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sug.CreatedAt.IsZero() {
		sug.CreatedAt = time.Now()
	}

	file, err := os.OpenFile(f.path(suggestionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	line := fmt.Sprintf("%s,%s,%s,%s\n",
		sug.CreatedAt.Format(suggestionTimeLayout),
		sug.PatientID,
		sug.Filename,
		strings.ReplaceAll(sug.Text, "\n", " "),
	)
	_, err = file.WriteString(line)
	return err
}

// ListSuggestionsByPatient returns a patient's suggestions in file order.
// Lines that do not parse are skipped.
func (f *FileStore) ListSuggestionsByPatient(_ context.Context, patientID string) ([]*models.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path(suggestionsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var sugs []*models.Suggestion
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimRight(scanner.Text(), "\n"), ",", 4)
		if len(parts) < 4 || parts[1] != patientID {
			continue
		}
		createdAt, err := time.ParseInLocation(suggestionTimeLayout, parts[0], time.Local)
		if err != nil {
			continue
		}
		sugs = append(sugs, &models.Suggestion{
			CreatedAt: createdAt,
			PatientID: parts[1],
			Filename:  parts[2],
			Text:      parts[3],
		})
	}
	return sugs, scanner.Err()
}

// CountAppointments returns the total number of appointments.
func (f *FileStore) CountAppointments(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.loadAppointments())), nil
}

// CountCredentials returns the total number of registered patients.
func (f *FileStore) CountCredentials(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.loadCredentials())), nil
}

// Close is a no-op for the file store.
func (f *FileStore) Close() error {
	return nil
}
