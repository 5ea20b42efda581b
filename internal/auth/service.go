package auth

import (
	"context"
	"errors"

	"github.com/carebook/carebook/internal/models"
	"github.com/carebook/carebook/internal/storage"
)

// ErrInvalidCredentials is returned for any failed login. An unknown patient
// ID and a wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid patient ID or password")

// Service handles registration, login, and password changes against the store.
type Service struct {
	store     storage.Store
	issuer    *TokenIssuer
	doctorIDs map[string]bool
}

// NewService returns a Service. doctorIDs lists the patient IDs granted the
// doctor role at login.
func NewService(store storage.Store, issuer *TokenIssuer, doctorIDs []string) *Service {
	doctors := make(map[string]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		doctors[id] = true
	}
	return &Service{store: store, issuer: issuer, doctorIDs: doctors}
}

// Register creates a credential record with a hashed password.
// Re-registering an existing patient ID returns storage.ErrDuplicatePatient.
func (s *Service) Register(ctx context.Context, patientID, email, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.CreateCredential(ctx, &models.Credential{
		PatientID:    patientID,
		Email:        email,
		PasswordHash: hash,
	})
}

// Login verifies the patient's password and returns a signed session token.
// Any failure, unknown ID or wrong password, returns ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, patientID, password string) (string, *Claims, error) {
	cred, err := s.store.GetCredential(ctx, patientID)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !CheckPassword(password, cred.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	role := RolePatient
	if s.doctorIDs[patientID] {
		role = RoleDoctor
	}

	token, err := s.issuer.Issue(patientID, role)
	if err != nil {
		return "", nil, err
	}
	return token, &Claims{Role: role}, nil
}

// ChangePassword verifies the old password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, patientID, oldPassword, newPassword string) error {
	cred, err := s.store.GetCredential(ctx, patientID)
	if err != nil {
		return ErrInvalidCredentials
	}
	if !CheckPassword(oldPassword, cred.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, patientID, hash)
}

// Verify validates a session token and returns its claims.
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	return s.issuer.Verify(tokenStr)
}
