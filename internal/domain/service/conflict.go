package service

import (
	"time"

	"granulemigration/internal/domain/entity"
)

// ConflictDecision is the outcome of comparing a source record with its destination copy.
type ConflictDecision int

const (
	// DecisionMigrate means the source record should be written.
	DecisionMigrate ConflictDecision = iota
	// DecisionAlreadyMigrated means the destination is as new or newer.
	DecisionAlreadyMigrated
)

// String returns a readable name for the decision.
func (d ConflictDecision) String() string {
	switch d {
	case DecisionMigrate:
		return "migrate"
	case DecisionAlreadyMigrated:
		return "already_migrated"
	default:
		return "unknown"
	}
}

// DecideConflict applies the newer-wins rule. Equal timestamps count as already migrated.
func DecideConflict(existing *entity.Granule, incomingUpdatedAt time.Time) ConflictDecision {
	if existing == nil {
		return DecisionMigrate
	}
	if existing.IsNewerOrEqual(incomingUpdatedAt) {
		return DecisionAlreadyMigrated
	}
	return DecisionMigrate
}
