package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/auth"
	"github.com/carebook/carebook/internal/chatbot"
	"github.com/carebook/carebook/internal/models"
	"github.com/carebook/carebook/internal/storage"
	"github.com/carebook/carebook/internal/triage"
	"github.com/carebook/carebook/internal/uploads"
)

// maxUploadBytes caps prescription upload size.
const maxUploadBytes = 20 << 20

type registerRequest struct {
	PatientID string `json:"patient_id"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "patient_id and password are required")
		return
	}

	err := s.authSvc.Register(r.Context(), req.PatientID, req.Email, req.Password)
	if errors.Is(err, storage.ErrDuplicatePatient) {
		s.respondError(w, http.StatusConflict, "patient ID already registered")
		return
	}
	if err != nil {
		s.logger.Error("registration failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"patient_id": req.PatientID, "status": "registered"})
}

type loginRequest struct {
	PatientID string `json:"patient_id"`
	Password  string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, claims, err := s.authSvc.Login(r.Context(), req.PatientID, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.respondError(w, http.StatusUnauthorized, "invalid patient ID or password")
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"token": token, "role": string(claims.Role)})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		s.respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}

	err := s.authSvc.ChangePassword(r.Context(), claims.Subject, req.OldPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.respondError(w, http.StatusUnauthorized, "invalid patient ID or password")
		return
	}
	if err != nil {
		s.logger.Error("password change failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type triageRequest struct {
	Symptoms string `json:"symptoms"`
	Location string `json:"location"`
}

type triageResponse struct {
	models.TriageResult
	Referral models.Referral `json:"referral"`
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symptoms == "" {
		s.respondError(w, http.StatusBadRequest, "symptoms are required")
		return
	}

	s.respondJSON(w, http.StatusOK, triageResponse{
		TriageResult: triage.Classify(req.Symptoms),
		Referral:     triage.Route(req.Symptoms, req.Location),
	})
}

type bookRequest struct {
	Name              string `json:"name"`
	Age               string `json:"age"`
	Location          string `json:"location"`
	Symptoms          string `json:"symptoms"`
	PreferredHospital string `json:"preferred_hospital"`
}

func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symptoms == "" {
		s.respondError(w, http.StatusBadRequest, "symptoms are required")
		return
	}

	result := triage.Classify(req.Symptoms)
	appt := &models.Appointment{
		ID:                 uuid.NewString(),
		PatientID:          claims.Subject,
		Name:               req.Name,
		Age:                req.Age,
		Location:           req.Location,
		Symptoms:           req.Symptoms,
		PreferredHospital:  req.PreferredHospital,
		UrgencyScore:       result.UrgencyScore,
		TimeRecommendation: result.TimeRecommendation,
		KeySymptoms:        result.KeySymptoms,
		Notes:              result.Notes,
		BookingTime:        time.Now(),
		Status:             models.StatusPending,
	}
	if err := s.store.CreateAppointment(r.Context(), appt); err != nil {
		s.logger.Error("appointment booking failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("appointment booked",
		zap.String("id", appt.ID),
		zap.Int("urgency", appt.UrgencyScore))
	s.respondJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var (
		appts []*models.Appointment
		err   error
	)
	if claims.Role == auth.RoleDoctor {
		appts, err = s.store.ListAppointments(r.Context())
	} else {
		appts, err = s.store.ListAppointmentsByPatient(r.Context(), claims.Subject)
	}
	if err != nil {
		s.logger.Error("list appointments failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if appts == nil {
		appts = []*models.Appointment{}
	}
	s.respondJSON(w, http.StatusOK, appts)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	appt, err := s.store.GetAppointment(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if claims.Role != auth.RoleDoctor && appt.PatientID != claims.Subject {
		s.respondError(w, http.StatusForbidden, "not your appointment")
		return
	}
	s.respondJSON(w, http.StatusOK, appt)
}

type statusUpdateRequest struct {
	Status models.AppointmentStatus `json:"status"`
}

func (s *Server) handleUpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		s.respondError(w, http.StatusBadRequest, "status must be Accepted or Rejected")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.store.UpdateAppointmentStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, storage.ErrInvalidTransition):
		s.respondError(w, http.StatusConflict, "appointment is not pending")
	case err != nil:
		s.logger.Error("status update failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
	}
}

func (s *Server) handleUploadPrescription(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	stored, err := s.uploads.Save(claims.Subject, header.Filename, file)
	if errors.Is(err, uploads.ErrUnsupportedType) {
		s.respondError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	}
	if err != nil {
		s.logger.Error("prescription upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"name": stored, "status": "uploaded"})
}

// prescriptionOwner resolves whose files the request targets. Doctors may
// pass ?patient_id= to inspect any patient's uploads.
func prescriptionOwner(r *http.Request, claims *auth.Claims) string {
	if claims.Role == auth.RoleDoctor {
		if pid := r.URL.Query().Get("patient_id"); pid != "" {
			return pid
		}
	}
	return claims.Subject
}

func (s *Server) handleListPrescriptions(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	files, err := s.uploads.List(prescriptionOwner(r, claims))
	if err != nil {
		s.logger.Error("list prescriptions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []*uploads.File{}
	}
	s.respondJSON(w, http.StatusOK, files)
}

func (s *Server) handleDownloadPrescription(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	name := chi.URLParam(r, "name")

	f, err := s.uploads.Open(prescriptionOwner(r, claims), name)
	if errors.Is(err, uploads.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, f)
}

type suggestionRequest struct {
	PatientID string `json:"patient_id"`
	Filename  string `json:"filename"`
	Text      string `json:"text"`
}

func (s *Server) handleCreateSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == "" || req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "patient_id and text are required")
		return
	}

	sug := &models.Suggestion{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		PatientID: req.PatientID,
		Filename:  req.Filename,
		Text:      req.Text,
	}
	if err := s.store.AppendSuggestion(r.Context(), sug); err != nil {
		s.logger.Error("suggestion append failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, sug)
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	sugs, err := s.store.ListSuggestionsByPatient(r.Context(), prescriptionOwner(r, claims))
	if err != nil {
		s.logger.Error("list suggestions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sugs == nil {
		sugs = []*models.Suggestion{}
	}
	s.respondJSON(w, http.StatusOK, sugs)
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Question)
	if errors.Is(err, chatbot.ErrNoAnswer) {
		s.respondError(w, http.StatusNotFound, "No relevant information found.")
		return
	}
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apptCount, err := s.store.CountAppointments(ctx)
	if err != nil {
		s.logger.Error("status: count appointments failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	patientCount, err := s.store.CountCredentials(ctx)
	if err != nil {
		s.logger.Error("status: count patients failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"appointments":     apptCount,
		"patients":         patientCount,
		"knowledge_chunks": s.base.ChunkCount(),
	}

	configInfo := map[string]interface{}{
		"storage_backend": s.config.Storage.Backend,
		"chunk_size":      s.config.Knowledge.ChunkSize,
		"chunk_overlap":   s.config.Knowledge.ChunkOverlap,
		"top_k":           s.config.Chatbot.TopK,
		"min_score":       s.config.Chatbot.MinScoreOrDefault(),
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.DataDir,
		s.config.Storage.UploadDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
