package appointment

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/healthspace/dlt-portal/pkg/database"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := &Repository{
		db:     &database.DB{DB: sqlDB},
		logger: logger.New("debug"),
	}

	cleanup := func() {
		sqlDB.Close()
	}

	return repo, mock, cleanup
}

func appointmentColumns() []string {
	return []string{
		"id", "requester_identity", "target_identity", "scheduled_date",
		"scheduled_time", "reason", "status", "rejection_reason",
		"created_at", "updated_at",
	}
}

func TestRepository_CreateAppointment(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now().UTC()
	apt := &types.Appointment{
		ID:                uuid.New().String(),
		RequesterIdentity: "patient@example.org",
		TargetIdentity:    "doctor@example.org",
		Date:              "2026-09-15",
		Time:              "10:30",
		Reason:            "annual checkup",
		Status:            types.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(
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
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAppointment(apt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateAppointment_Error(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	apt := &types.Appointment{ID: "apt-1", Status: types.StatusPending}

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(assert.AnError)

	err := repo.CreateAppointment(apt)
	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypePersistence))
}

func TestRepository_GetAppointmentByID(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(appointmentColumns()).
		AddRow("apt-1", "patient@example.org", "doctor@example.org",
			"2026-09-15", "10:30", "annual checkup", "pending", "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("apt-1").
		WillReturnRows(rows)

	apt, err := repo.GetAppointmentByID("apt-1")
	require.NoError(t, err)
	assert.Equal(t, "apt-1", apt.ID)
	assert.Equal(t, types.StatusPending, apt.Status)
	assert.Equal(t, "patient@example.org", apt.RequesterIdentity)
}

func TestRepository_GetAppointmentByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()))

	apt, err := repo.GetAppointmentByID("missing")
	assert.Nil(t, apt)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestRepository_DecideAppointment_Confirm(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", "confirmed", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DecideAppointment("apt-1", types.StatusConfirmed, "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DecideAppointment_AlreadyDecided(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	// Conditional update misses because the row is no longer pending
	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", "rejected", "fully booked", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now().UTC()
	rows := sqlmock.NewRows(appointmentColumns()).
		AddRow("apt-1", "patient@example.org", "doctor@example.org",
			"2026-09-15", "10:30", "annual checkup", "confirmed", "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("apt-1").
		WillReturnRows(rows)

	err := repo.DecideAppointment("apt-1", types.StatusRejected, "fully booked")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeInvalidState))
}

func TestRepository_DecideAppointment_NotFound(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("missing", "confirmed", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()))

	err := repo.DecideAppointment("missing", types.StatusConfirmed, "")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestRepository_DecideAppointment_InvalidStatus(t *testing.T) {
	repo, _, cleanup := setupTestRepository(t)
	defer cleanup()

	err := repo.DecideAppointment("apt-1", types.StatusPending, "")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
}

func TestRepository_GetAppointmentsForIdentity(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(appointmentColumns()).
		AddRow("apt-2", "patient@example.org", "doctor@example.org",
			"2026-09-16", "14:00", "follow up", "pending", "", now, now).
		AddRow("apt-1", "other@example.org", "patient@example.org",
			"2026-09-15", "10:30", "annual checkup", "confirmed", "", now.Add(-time.Hour), now)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("patient@example.org", 50).
		WillReturnRows(rows)

	appointments, err := repo.GetAppointmentsForIdentity("patient@example.org", 50, 0)
	require.NoError(t, err)
	require.Len(t, appointments, 2)
	assert.Equal(t, "apt-2", appointments[0].ID)
	assert.Equal(t, "apt-1", appointments[1].ID)
}

func TestRepository_GetAppointmentsForIdentity_Empty(t *testing.T) {
	repo, mock, cleanup := setupTestRepository(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("nobody@example.org", 50).
		WillReturnRows(sqlmock.NewRows(appointmentColumns()))

	appointments, err := repo.GetAppointmentsForIdentity("nobody@example.org", 50, 0)
	assert.NoError(t, err)
	assert.Empty(t, appointments)
}
