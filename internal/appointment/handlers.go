package appointment

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/healthspace/dlt-portal/pkg/monitoring"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// setupRoutes configures HTTP routes for the appointment service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Appointment routes
	api.HandleFunc("/appointments/request", s.requestAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments/respond", s.respondAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments", s.getAppointmentsHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", s.getAppointmentHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}/audit", s.getAppointmentAuditHandler).Methods("GET")

	// Push channel
	router.Handle(s.config.WebSocket.Path, s.newWSHandler())

	// Operational endpoints
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}
	router.Handle(s.config.Monitoring.HealthPath, s.health.Handler()).Methods("GET")

	s.logger.Info("Appointment service routes configured")
}

// requestAppointmentHandler handles new appointment requests
func (s *Service) requestAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var req types.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := s.RequestAppointment(&req)
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "Failed to request appointment", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{
		"appointmentId": id,
		"status":        string(types.StatusPending),
	})
}

// respondAppointmentHandler handles accept and reject decisions
func (s *Service) respondAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var resp types.AppointmentResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.RespondToAppointment(&resp); err != nil {
		s.writeErrorResponse(w, statusForError(err), "Failed to respond to appointment", err)
		return
	}

	status := types.StatusRejected
	if resp.Accepted {
		status = types.StatusConfirmed
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]string{
		"appointmentId": resp.AppointmentID,
		"status":        string(status),
	})
}

// getAppointmentHandler handles single appointment retrieval
func (s *Service) getAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	apt, err := s.GetAppointment(vars["id"])
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "Failed to get appointment", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, apt)
}

// getAppointmentsHandler lists appointments for one identity. Clients call
// this after connecting to reconcile whatever pushes they missed while
// offline.
func (s *Service) getAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	appointments, err := s.GetAppointmentsForIdentity(identity, limit, offset)
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "Failed to get appointments", err)
		return
	}

	if appointments == nil {
		appointments = []*types.Appointment{}
	}
	s.writeJSONResponse(w, http.StatusOK, appointments)
}

// getAppointmentAuditHandler returns the ledger audit trail for an appointment
func (s *Service) getAppointmentAuditHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	trail, err := s.ledger.GetTrailByAppointment(vars["id"])
	if err != nil {
		s.writeErrorResponse(w, statusForError(err), "Failed to get audit trail", err)
		return
	}

	if trail == nil {
		trail = []*types.AuditEvent{}
	}
	s.writeJSONResponse(w, http.StatusOK, trail)
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	errType, ok := types.ErrorTypeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch errType {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	s.logger.WithError(err).Warn(message)

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	s.writeJSONResponse(w, statusCode, response)
}
