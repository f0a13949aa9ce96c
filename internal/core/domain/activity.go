package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names the aggregate an activity entry belongs to.
type EntityType string

const (
	EntityCampaign  EntityType = "campaign"
	EntityPromotion EntityType = "promotion"
)

// Activity actions recorded on campaigns and promotions.
const (
	ActionCreated          = "created"
	ActionStatusChanged    = "status_changed"
	ActionPromoterAssigned = "promoter_assigned"
	ActionExhausted        = "exhausted"
	ActionReactivated      = "reactivated"
	ActionProofSubmitted   = "proof_submitted"
	ActionAutoReview       = "auto_review"
	ActionValidated        = "validated"
	ActionPaid             = "paid"
	ActionRejected         = "rejected"
	ActionExpired          = "expired"
	ActionRefunded         = "refunded"
	ActionArchived         = "archived"
	ActionCompleted        = "completed"
	ActionDownloaded       = "downloaded"
)

// ActivityEntry is an append-only history record for a campaign or promotion.
type ActivityEntry struct {
	ID          uuid.UUID  `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    uuid.UUID  `json:"entity_id"`
	Action      string     `json:"action"`
	PerformedBy *uuid.UUID `json:"performed_by,omitempty"` // nil = system
	Details     string     `json:"details,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewActivity builds an entry stamped at now.
func NewActivity(entity EntityType, entityID uuid.UUID, action string, by *uuid.UUID, details string, now time.Time) ActivityEntry {
	return ActivityEntry{
		ID:          uuid.New(),
		EntityType:  entity,
		EntityID:    entityID,
		Action:      action,
		PerformedBy: by,
		Details:     details,
		CreatedAt:   now,
	}
}
