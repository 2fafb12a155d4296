// Package audit records administrative and security-relevant actions in an
// append-only, hash-chained log.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Actions.
const (
	ActionLLMConfigUpdate = "llm_config_update"
	ActionLLMConfigDelete = "llm_config_delete"
	ActionAdminGrant      = "admin_grant"
	ActionAdminRevoke     = "admin_revoke"
	ActionLoginFailed     = "login_failed"
	ActionAuditExport     = "audit_export"
)

// Entity types.
const (
	EntityLLMConfig = "llm_config"
	EntityUser      = "user"
	EntityAuditLog  = "audit_log"
)

var (
	// ErrInvalidEntry is returned when an entry is missing required fields.
	ErrInvalidEntry = errors.New("invalid audit entry")

	// ErrChainBroken is returned by VerifyChain when a link does not match.
	ErrChainBroken = errors.New("audit hash chain broken")
)

var validActions = map[string]bool{
	ActionLLMConfigUpdate: true,
	ActionLLMConfigDelete: true,
	ActionAdminGrant:      true,
	ActionAdminRevoke:     true,
	ActionLoginFailed:     true,
	ActionAuditExport:     true,
}

// Log is a stored audit event.
type Log struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	Username     string    `json:"username,omitempty"`
	Action       string    `json:"action"`
	EntityType   string    `json:"entityType"`
	EntityID     string    `json:"entityId"`
	Outcome      string    `json:"outcome"`
	RequestID    string    `json:"requestId,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	PreviousHash string    `json:"previousHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Entry is the input for a new audit event.
type Entry struct {
	UserID     string
	Username   string
	Action     string
	EntityType string
	EntityID   string
	Outcome    string

	RequestID string
	IPAddress string
	UserAgent string
}

// Validate checks required fields and that Action is known. An empty
// Outcome is treated as success.
func (e Entry) Validate() error {
	switch {
	case e.EntityType == "":
		return fmt.Errorf("%w: entity type is required", ErrInvalidEntry)
	case e.EntityID == "":
		return fmt.Errorf("%w: entity id is required", ErrInvalidEntry)
	case !validActions[e.Action]:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, e.Action)
	case e.Outcome != "" && e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFailure:
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidEntry, e.Outcome)
	}
	return nil
}

// newLog builds the stored form of e chained to previousHash. CreatedAt is
// truncated to microseconds so the hash survives a Postgres round trip.
func newLog(id string, e Entry, previousHash string, now time.Time) *Log {
	outcome := e.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}
	return &Log{
		ID:           id,
		UserID:       e.UserID,
		Username:     e.Username,
		Action:       e.Action,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Outcome:      outcome,
		RequestID:    e.RequestID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		PreviousHash: previousHash,
		CreatedAt:    now.UTC().Truncate(time.Microsecond),
	}
}

// Hash returns the SHA-256 digest of l, including its link to the previous entry.
func (l *Log) Hash() string {
	fields := []string{
		l.ID, l.UserID, l.Username, l.Action, l.EntityType, l.EntityID, l.Outcome,
		l.RequestID, l.IPAddress, l.UserAgent, l.PreviousHash,
		l.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that each log links to the hash of the one before it.
// logs must be ordered oldest first and start at the beginning of the chain.
func VerifyChain(logs []*Log) error {
	prev := ""
	for i, l := range logs {
		if l.PreviousHash != prev {
			return fmt.Errorf("%w at entry %d (%s)", ErrChainBroken, i, l.ID)
		}
		prev = l.Hash()
	}
	return nil
}
