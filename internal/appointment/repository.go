package appointment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/healthspace/dlt-portal/pkg/database"
	"github.com/healthspace/dlt-portal/pkg/interfaces"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// Repository implements the AppointmentRepository interface on PostgreSQL
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new appointment repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.AppointmentRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// CreateAppointment inserts a new pending appointment
func (r *Repository) CreateAppointment(apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, requester_identity, target_identity, scheduled_date, scheduled_time,
			reason, status, rejection_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		apt.ID,
		apt.RequesterIdentity,
		apt.TargetIdentity,
		apt.Date,
		apt.Time,
		apt.Reason,
		string(apt.Status),
		apt.RejectionReason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)

	if err != nil {
		r.logger.WithError(err).Error("Failed to create appointment")
		return types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to create appointment", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"appointment_id": apt.ID,
		"requester":      apt.RequesterIdentity,
		"target":         apt.TargetIdentity,
	}).Info("Created appointment")
	return nil
}

// GetAppointmentByID retrieves an appointment by ID
func (r *Repository) GetAppointmentByID(id string) (*types.Appointment, error) {
	query := `
		SELECT id, requester_identity, target_identity, scheduled_date, scheduled_time,
			   reason, status, rejection_reason, created_at, updated_at
		FROM appointments
		WHERE id = $1`

	apt := &types.Appointment{}
	err := r.db.QueryRow(query, id).Scan(
		&apt.ID,
		&apt.RequesterIdentity,
		&apt.TargetIdentity,
		&apt.Date,
		&apt.Time,
		&apt.Reason,
		&apt.Status,
		&apt.RejectionReason,
		&apt.CreatedAt,
		&apt.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment not found: %s", id))
		}
		r.logger.WithError(err).WithField("appointment_id", id).Error("Failed to get appointment")
		return nil, types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to get appointment", err)
	}

	return apt, nil
}

// DecideAppointment moves a pending appointment to a terminal status. The
// status predicate is part of the UPDATE itself so concurrent deciders cannot
// both win; the loser sees zero rows affected and a follow-up read tells a
// missing row apart from an already decided one.
func (r *Repository) DecideAppointment(id string, status types.AppointmentStatus, rejectionReason string) error {
	if status != types.StatusConfirmed && status != types.StatusRejected {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid decision status: %s", status), nil)
	}

	query := `
		UPDATE appointments
		SET status = $2, rejection_reason = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.Exec(query, id, string(status), rejectionReason, time.Now().UTC())
	if err != nil {
		r.logger.WithError(err).WithField("appointment_id", id).Error("Failed to decide appointment")
		return types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to decide appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		apt, getErr := r.GetAppointmentByID(id)
		if getErr != nil {
			return getErr
		}
		return types.NewInvalidStateError(types.ErrCodeAlreadyDecided,
			fmt.Sprintf("appointment %s already decided: %s", id, apt.Status))
	}

	r.logger.WithFields(map[string]interface{}{
		"appointment_id": id,
		"status":         string(status),
	}).Info("Decided appointment")
	return nil
}

// GetAppointmentsForIdentity retrieves appointments where identity is either
// the requester or the target, newest first.
func (r *Repository) GetAppointmentsForIdentity(identity string, limit, offset int) ([]*types.Appointment, error) {
	query := `
		SELECT id, requester_identity, target_identity, scheduled_date, scheduled_time,
			   reason, status, rejection_reason, created_at, updated_at
		FROM appointments
		WHERE requester_identity = $1 OR target_identity = $1
		ORDER BY created_at DESC`

	args := []interface{}{identity}
	argIndex := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.WithIdentity(identity).WithError(err).Error("Failed to get appointments")
		return nil, types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to get appointments", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt := &types.Appointment{}
		err := rows.Scan(
			&apt.ID,
			&apt.RequesterIdentity,
			&apt.TargetIdentity,
			&apt.Date,
			&apt.Time,
			&apt.Reason,
			&apt.Status,
			&apt.RejectionReason,
			&apt.CreatedAt,
			&apt.UpdatedAt,
		)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan appointment")
			return nil, types.NewPersistenceError(types.ErrCodeStoreFailure, "failed to scan appointment", err)
		}
		appointments = append(appointments, apt)
	}

	if err = rows.Err(); err != nil {
		return nil, types.NewPersistenceError(types.ErrCodeStoreFailure, "error iterating appointments", err)
	}

	return appointments, nil
}
