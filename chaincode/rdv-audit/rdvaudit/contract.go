package rdvaudit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SmartContract provides functions for managing the appointment audit trail
type SmartContract struct {
	contractapi.Contract
}

// AuditEntry represents an immutable appointment state transition
type AuditEntry struct {
	ID                string                 `json:"id"`
	AppointmentID     string                 `json:"appointment_id"`
	Action            string                 `json:"action"`
	Actor             string                 `json:"actor"`
	RequesterIdentity string                 `json:"requester_identity"`
	TargetIdentity    string                 `json:"target_identity"`
	Timestamp         time.Time              `json:"timestamp"`
	Details           map[string]interface{} `json:"details,omitempty"`
	Signature         string                 `json:"signature"`
	TxID              string                 `json:"tx_id"`
}

// Transition actions recorded on the ledger
const (
	ActionRequested = "appointment_requested"
	ActionConfirmed = "appointment_confirmed"
	ActionRejected  = "appointment_rejected"
)

// QueryFilter represents filters for audit trail queries
type QueryFilter struct {
	AppointmentID string    `json:"appointment_id,omitempty"`
	Action        string    `json:"action,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	StartTime     time.Time `json:"start_time,omitempty"`
	EndTime       time.Time `json:"end_time,omitempty"`
}

// InitLedger initializes the audit trail ledger
func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	callerID, err := s.getCallerIdentity(ctx)
	if err != nil {
		callerID = "system"
	}

	initEntry := AuditEntry{
		ID:            s.generateEntryID("system_init", time.Now()),
		AppointmentID: "rdv_audit_chaincode",
		Action:        "system_init",
		Actor:         callerID,
		Timestamp:     time.Now(),
		Details: map[string]interface{}{
			"event":   "RdvAudit chaincode initialized",
			"version": "1.0.0",
		},
		TxID: ctx.GetStub().GetTxID(),
	}

	signature, err := s.generateEntrySignature(initEntry)
	if err != nil {
		return fmt.Errorf("failed to generate signature: %v", err)
	}
	initEntry.Signature = signature

	entryJSON, err := json.Marshal(initEntry)
	if err != nil {
		return err
	}

	return ctx.GetStub().PutState(initEntry.ID, entryJSON)
}

// RecordTransition records one appointment state transition. The entry JSON
// comes from the portal's audit writer; the chaincode assigns the transaction
// ID and signature.
func (s *SmartContract) RecordTransition(ctx contractapi.TransactionContextInterface, entryJSON string) error {
	var entry AuditEntry
	if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
		return fmt.Errorf("invalid audit entry JSON: %v", err)
	}

	if entry.AppointmentID == "" {
		return fmt.Errorf("appointment ID is required")
	}
	if !s.isKnownAction(entry.Action) {
		return fmt.Errorf("unknown transition action: %s", entry.Action)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = s.generateEntryID(entry.Action+"_"+entry.AppointmentID, entry.Timestamp)
	}
	entry.TxID = ctx.GetStub().GetTxID()

	// Ledger entries are append-only; a colliding ID means a replay
	existing, err := ctx.GetStub().GetState(entry.ID)
	if err != nil {
		return fmt.Errorf("failed to read world state: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("audit entry %s already exists", entry.ID)
	}

	signature, err := s.generateEntrySignature(entry)
	if err != nil {
		return fmt.Errorf("failed to generate signature: %v", err)
	}
	entry.Signature = signature

	stateJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return ctx.GetStub().PutState(entry.ID, stateJSON)
}

// GetAuditEntry retrieves a specific audit entry by ID
func (s *SmartContract) GetAuditEntry(ctx contractapi.TransactionContextInterface, entryID string) (*AuditEntry, error) {
	entryJSON, err := ctx.GetStub().GetState(entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entry from world state: %v", err)
	}
	if entryJSON == nil {
		return nil, fmt.Errorf("audit entry %s does not exist", entryID)
	}

	var entry AuditEntry
	err = json.Unmarshal(entryJSON, &entry)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// QueryTrail queries audit entries based on filters
func (s *SmartContract) QueryTrail(ctx contractapi.TransactionContextInterface, filterJSON string) ([]*AuditEntry, error) {
	var filter QueryFilter
	if filterJSON != "" {
		err := json.Unmarshal([]byte(filterJSON), &filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter JSON: %v", err)
		}
	}

	query := s.buildCouchDBQuery(filter)

	resultsIterator, err := ctx.GetStub().GetQueryResult(query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %v", err)
	}
	defer resultsIterator.Close()

	var entries []*AuditEntry
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var entry AuditEntry
		err = json.Unmarshal(queryResponse.Value, &entry)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

// GetTrailByAppointment retrieves the full transition history of one
// appointment, oldest entry first.
func (s *SmartContract) GetTrailByAppointment(ctx contractapi.TransactionContextInterface, appointmentID string) ([]*AuditEntry, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("appointment ID is required")
	}

	filter := QueryFilter{
		AppointmentID: appointmentID,
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	return s.QueryTrail(ctx, string(filterJSON))
}

// GetTrailByActor retrieves audit entries recorded for a specific actor
func (s *SmartContract) GetTrailByActor(ctx contractapi.TransactionContextInterface, actor string, startTime, endTime int64) ([]*AuditEntry, error) {
	filter := QueryFilter{
		Actor: actor,
	}

	if startTime > 0 {
		filter.StartTime = time.Unix(startTime, 0)
	}
	if endTime > 0 {
		filter.EndTime = time.Unix(endTime, 0)
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	return s.QueryTrail(ctx, string(filterJSON))
}

// VerifyEntryIntegrity verifies that an audit entry has not been altered
func (s *SmartContract) VerifyEntryIntegrity(ctx contractapi.TransactionContextInterface, entryID string) (bool, error) {
	entry, err := s.GetAuditEntry(ctx, entryID)
	if err != nil {
		return false, err
	}

	expectedSignature, err := s.generateEntrySignature(*entry)
	if err != nil {
		return false, fmt.Errorf("failed to generate signature for verification: %v", err)
	}

	return entry.Signature == expectedSignature, nil
}

// Helper functions

func (s *SmartContract) isKnownAction(action string) bool {
	switch action {
	case ActionRequested, ActionConfirmed, ActionRejected:
		return true
	default:
		return false
	}
}

// generateEntryID generates a unique audit entry ID
func (s *SmartContract) generateEntryID(prefix string, timestamp time.Time) string {
	input := fmt.Sprintf("%s_%d_%d", prefix, timestamp.Unix(), timestamp.Nanosecond())
	hash := sha256.Sum256([]byte(input))
	return "rdv_audit_" + hex.EncodeToString(hash[:8])
}

// generateEntrySignature generates a cryptographic signature for an audit
// entry. The signature field itself is excluded from the input.
func (s *SmartContract) generateEntrySignature(entry AuditEntry) (string, error) {
	signatureInput := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s",
		entry.ID,
		entry.AppointmentID,
		entry.Action,
		entry.Actor,
		entry.RequesterIdentity,
		entry.TargetIdentity,
		entry.Timestamp.Unix(),
		entry.TxID,
	)

	if entry.Details != nil {
		detailsJSON, err := json.Marshal(entry.Details)
		if err == nil {
			signatureInput += "|" + string(detailsJSON)
		}
	}

	hash := sha256.Sum256([]byte(signatureInput))
	return hex.EncodeToString(hash[:]), nil
}

// getCallerIdentity gets the identity of the transaction caller
func (s *SmartContract) getCallerIdentity(ctx contractapi.TransactionContextInterface) (string, error) {
	clientIdentity := ctx.GetClientIdentity()
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client ID: %v", err)
	}
	return id, nil
}

// buildCouchDBQuery builds a CouchDB query based on filters
func (s *SmartContract) buildCouchDBQuery(filter QueryFilter) string {
	query := map[string]interface{}{
		"selector": map[string]interface{}{},
		"sort": []map[string]string{
			{"timestamp": "asc"},
		},
	}

	selector := query["selector"].(map[string]interface{})

	if filter.AppointmentID != "" {
		selector["appointment_id"] = filter.AppointmentID
	}

	if filter.Action != "" {
		selector["action"] = filter.Action
	}

	if filter.Actor != "" {
		selector["actor"] = filter.Actor
	}

	if !filter.StartTime.IsZero() || !filter.EndTime.IsZero() {
		timeFilter := map[string]interface{}{}

		if !filter.StartTime.IsZero() {
			timeFilter["$gte"] = filter.StartTime.Format(time.RFC3339)
		}

		if !filter.EndTime.IsZero() {
			timeFilter["$lte"] = filter.EndTime.Format(time.RFC3339)
		}

		selector["timestamp"] = timeFilter
	}

	queryJSON, _ := json.Marshal(query)
	return string(queryJSON)
}
