package appointment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/healthspace/dlt-portal/internal/audit"
	"github.com/healthspace/dlt-portal/pkg/config"
	"github.com/healthspace/dlt-portal/pkg/database"
	"github.com/healthspace/dlt-portal/pkg/interfaces"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/monitoring"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// Service implements the AppointmentService interface. It owns the registry
// and dispatcher for the push channel, the durable repository, and the audit
// pipeline feeding the ledger.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.AppointmentRepository
	db         *database.DB
	registry   interfaces.ConnectionRegistry
	dispatcher interfaces.EventDispatcher
	audit      interfaces.AuditWriter
	ledger     interfaces.LedgerClient
	validator  *TokenValidator
	health     *monitoring.HealthManager
	server     *http.Server
}

// New creates a new appointment service
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	repository := NewRepository(db, log)
	registry := NewRegistry(log)
	dispatcher := NewDispatcher(registry, log)

	ledger := audit.NewLedgerClient(&cfg.Fabric, log)
	writer := audit.NewWriter(ledger, cfg.Audit.QueueSize, log)

	var validator *TokenValidator
	if cfg.JWT.SecretKey != "" {
		validator = NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	}

	health := monitoring.NewHealthManager("appointment-service")
	health.RegisterChecker("database", monitoring.NewPingChecker("database", db))

	return &Service{
		config:     cfg,
		logger:     log,
		repository: repository,
		db:         db,
		registry:   registry,
		dispatcher: dispatcher,
		audit:      writer,
		ledger:     ledger,
		validator:  validator,
		health:     health,
	}, nil
}

// RequestAppointment validates and persists a new pending appointment, then
// audits the transition and pushes a notification to the target identity.
// Push delivery is best effort; the returned ID is valid either way.
func (s *Service) RequestAppointment(req *types.AppointmentRequest) (string, error) {
	if err := s.validateRequest(req); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	apt := &types.Appointment{
		ID:                uuid.New().String(),
		RequesterIdentity: req.RequesterIdentity,
		TargetIdentity:    req.TargetIdentity,
		Date:              req.Date,
		Time:              req.Time,
		Reason:            req.Reason,
		Status:            types.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repository.CreateAppointment(apt); err != nil {
		return "", err
	}
	monitoring.RecordTransition("request", string(types.StatusPending))

	s.audit.Append(&types.AuditEvent{
		ID:                uuid.New().String(),
		AppointmentID:     apt.ID,
		Action:            types.AuditActionRequested,
		Actor:             apt.RequesterIdentity,
		RequesterIdentity: apt.RequesterIdentity,
		TargetIdentity:    apt.TargetIdentity,
		Timestamp:         now,
		Details: map[string]interface{}{
			"date": apt.Date,
			"time": apt.Time,
		},
	})

	s.dispatcher.Dispatch(apt.TargetIdentity, types.NewRequestedEvent(apt))

	return apt.ID, nil
}

// RespondToAppointment applies the accept or reject decision to a pending
// appointment, audits it, and pushes the outcome to the original requester.
func (s *Service) RespondToAppointment(resp *types.AppointmentResponse) error {
	if resp == nil || resp.AppointmentID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "appointmentId is required", nil)
	}
	if resp.ResponderIdentity == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "responderIdentity is required", nil)
	}
	if !resp.Accepted && resp.Reason == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "reason is required when rejecting", nil)
	}

	apt, err := s.repository.GetAppointmentByID(resp.AppointmentID)
	if err != nil {
		return err
	}

	if resp.ResponderIdentity != apt.TargetIdentity {
		return types.NewAuthenticationError(types.ErrCodeUnauthorized,
			"only the appointment target may respond")
	}

	status := types.StatusRejected
	action := types.AuditActionRejected
	rejectionReason := resp.Reason
	if resp.Accepted {
		status = types.StatusConfirmed
		action = types.AuditActionConfirmed
		rejectionReason = ""
	}

	if err := s.repository.DecideAppointment(apt.ID, status, rejectionReason); err != nil {
		return err
	}
	monitoring.RecordTransition("respond", string(status))

	s.audit.Append(&types.AuditEvent{
		ID:                uuid.New().String(),
		AppointmentID:     apt.ID,
		Action:            action,
		Actor:             apt.TargetIdentity,
		RequesterIdentity: apt.RequesterIdentity,
		TargetIdentity:    apt.TargetIdentity,
		Timestamp:         time.Now().UTC(),
		Details: map[string]interface{}{
			"accepted": resp.Accepted,
			"reason":   rejectionReason,
		},
	})

	s.dispatcher.Dispatch(apt.RequesterIdentity, types.NewRespondedEvent(apt.ID, resp.Accepted, resp.Reason))

	return nil
}

// GetAppointment retrieves a single appointment by ID
func (s *Service) GetAppointment(id string) (*types.Appointment, error) {
	if id == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "appointment ID is required", nil)
	}
	return s.repository.GetAppointmentByID(id)
}

// GetAppointmentsForIdentity lists appointments involving identity, newest
// first. Clients use this on reconnect to catch up on pushes they missed.
func (s *Service) GetAppointmentsForIdentity(identity string, limit, offset int) ([]*types.Appointment, error) {
	if identity == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "identity is required", nil)
	}
	return s.repository.GetAppointmentsForIdentity(identity, limit, offset)
}

// Start starts the appointment service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // push connections stay open indefinitely
	}

	s.logger.WithField("addr", addr).Info("Starting Appointment Service")
	return s.server.ListenAndServe()
}

// Stop stops the appointment service and drains the audit queue
func (s *Service) Stop() error {
	s.logger.Info("Stopping Appointment Service")

	if reg, ok := s.registry.(*Registry); ok {
		reg.Shutdown()
	}
	if err := s.audit.Close(); err != nil {
		s.logger.WithError(err).Warn("Audit writer did not drain cleanly")
	}

	var serverErr error
	if s.server != nil {
		serverErr = s.server.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && serverErr == nil {
			serverErr = err
		}
	}
	return serverErr
}

// validateRequest checks the request payload field by field so the caller
// gets one actionable message instead of a database constraint error.
func (s *Service) validateRequest(req *types.AppointmentRequest) error {
	if req == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "request body is required", nil)
	}
	if req.RequesterIdentity == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "requesterIdentity is required", nil)
	}
	if req.TargetIdentity == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "targetIdentity is required", nil)
	}
	if req.RequesterIdentity == req.TargetIdentity {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"requesterIdentity and targetIdentity must differ", nil)
	}
	if req.Date == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "date is required", nil)
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"date must be formatted as YYYY-MM-DD", map[string]interface{}{"date": req.Date})
	}
	if req.Time == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "time is required", nil)
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"time must be formatted as HH:MM", map[string]interface{}{"time": req.Time})
	}
	return nil
}
