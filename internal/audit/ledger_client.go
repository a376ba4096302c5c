package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/healthspace/dlt-portal/pkg/config"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// LedgerClient submits appointment audit events to the rdv-audit chaincode
// and queries the trail back. Every state transition of an appointment gets
// one immutable ledger entry.
type LedgerClient struct {
	config    *config.FabricConfig
	logger    *logger.Logger
	channelID string
	auditCC   string

	// Simulated ledger state, keyed by appointment ID
	mu      sync.Mutex
	entries map[string][]*types.AuditEvent
}

// NewLedgerClient creates a new ledger client for the audit chaincode
func NewLedgerClient(cfg *config.FabricConfig, log *logger.Logger) *LedgerClient {
	return &LedgerClient{
		config:    cfg,
		logger:    log,
		channelID: cfg.ChannelName,
		auditCC:   cfg.Chaincodes["rdv_audit"],
		entries:   make(map[string][]*types.AuditEvent),
	}
}

// RecordTransition writes one audit event to the ledger
func (c *LedgerClient) RecordTransition(event *types.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is required")
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	args := []string{
		"RecordTransition",
		string(eventJSON),
	}

	if _, err := c.invokeChaincode(c.auditCC, args); err != nil {
		c.logger.LedgerTransaction(c.auditCC, "RecordTransition", false, "")
		return fmt.Errorf("failed to record transition: %w", err)
	}

	c.logger.LedgerTransaction(c.auditCC, "RecordTransition", true, event.ID)
	return nil
}

// GetTrailByAppointment retrieves the full audit trail for an appointment,
// oldest entry first.
func (c *LedgerClient) GetTrailByAppointment(appointmentID string) ([]*types.AuditEvent, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("appointment ID is required")
	}

	args := []string{
		"GetTrailByAppointment",
		appointmentID,
	}

	response, err := c.queryChaincode(c.auditCC, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}

	var trail []*types.AuditEvent
	if err := json.Unmarshal(response, &trail); err != nil {
		return nil, fmt.Errorf("failed to parse audit trail: %w", err)
	}

	return trail, nil
}

// invokeChaincode invokes a chaincode function (for state-changing operations)
func (c *LedgerClient) invokeChaincode(chaincode string, args []string) ([]byte, error) {
	// In a real implementation, this would use the Hyperledger Fabric SDK
	// to invoke the chaincode. For now, we simulate the ledger in memory.

	c.logger.WithFields(map[string]interface{}{
		"chaincode": chaincode,
		"function":  args[0],
		"channel":   c.channelID,
	}).Debug("Invoking chaincode")

	switch args[0] {
	case "RecordTransition":
		var event types.AuditEvent
		if err := json.Unmarshal([]byte(args[1]), &event); err != nil {
			return nil, fmt.Errorf("invalid audit event payload: %w", err)
		}

		c.mu.Lock()
		c.entries[event.AppointmentID] = append(c.entries[event.AppointmentID], &event)
		c.mu.Unlock()

		response := map[string]interface{}{
			"success":   true,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		return json.Marshal(response)

	default:
		return nil, fmt.Errorf("unknown chaincode function: %s", args[0])
	}
}

// queryChaincode queries a chaincode function (for read-only operations)
func (c *LedgerClient) queryChaincode(chaincode string, args []string) ([]byte, error) {
	// In a real implementation, this would use the Hyperledger Fabric SDK
	// to query the chaincode. For now, we simulate the ledger in memory.

	c.logger.WithFields(map[string]interface{}{
		"chaincode": chaincode,
		"function":  args[0],
		"channel":   c.channelID,
	}).Debug("Querying chaincode")

	switch args[0] {
	case "GetTrailByAppointment":
		c.mu.Lock()
		trail := append([]*types.AuditEvent(nil), c.entries[args[1]]...)
		c.mu.Unlock()

		return json.Marshal(trail)

	default:
		return nil, fmt.Errorf("unknown chaincode function: %s", args[0])
	}
}
