package domain

import (
	"fmt"
	"time"

	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignPending   CampaignStatus = "pending"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignExhausted CampaignStatus = "exhausted"
	CampaignCompleted CampaignStatus = "completed"
	CampaignRejected  CampaignStatus = "rejected"
	CampaignCancelled CampaignStatus = "cancelled"
	CampaignExpired   CampaignStatus = "expired"
	CampaignArchived  CampaignStatus = "archived"
)

// DefaultMinViewsPerPromotion applies when a campaign does not set its own minimum.
const DefaultMinViewsPerPromotion = 25

var campaignStatuses = map[CampaignStatus]struct{}{
	CampaignDraft: {}, CampaignPending: {}, CampaignActive: {}, CampaignPaused: {},
	CampaignExhausted: {}, CampaignCompleted: {}, CampaignRejected: {},
	CampaignCancelled: {}, CampaignExpired: {}, CampaignArchived: {},
}

// ParseCampaignStatus validates a raw status string.
func ParseCampaignStatus(raw string) (CampaignStatus, error) {
	s := CampaignStatus(raw)
	if !s.IsValid() {
		return "", apperror.Validation(fmt.Sprintf("unknown campaign status %q", raw))
	}
	return s, nil
}

// IsValid reports whether s is a known status.
func (s CampaignStatus) IsValid() bool {
	_, ok := campaignStatuses[s]
	return ok
}

// IsClosed reports whether the campaign's unspent budget has been settled.
// Closed campaigns never change status again.
func (s CampaignStatus) IsClosed() bool {
	switch s {
	case CampaignCompleted, CampaignRejected, CampaignCancelled, CampaignExpired, CampaignArchived:
		return true
	}
	return false
}

// RefundsOnEntry reports whether moving into s returns the unspent budget.
func (s CampaignStatus) RefundsOnEntry() bool {
	return s.IsClosed()
}

// Campaign is a marketer's funded request for promotions. All money fields
// are minor units.
//
// Marketer reserved funds held for the campaign always equal RemainingBudget.
type Campaign struct {
	ID                   uuid.UUID      `json:"id"`
	OwnerID              uuid.UUID      `json:"owner_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description,omitempty"`
	MediaURL             string         `json:"media_url,omitempty"`
	Budget               int64          `json:"budget"`
	SpentBudget          int64          `json:"spent_budget"`    // committed to admitted promotions
	RefundedBudget       int64          `json:"refunded_budget"` // returned to the owner's balance
	PaidOutBudget        int64          `json:"paid_out_budget"` // released to promoters
	PayoutPerPromotion   int64          `json:"payout_per_promotion"`
	MaxPromoters         int            `json:"max_promoters"`
	CurrentPromoters     int            `json:"current_promoters"`
	TotalPromotions      int            `json:"total_promotions"`
	ValidatedPromotions  int            `json:"validated_promotions"`
	PaidPromotions       int            `json:"paid_promotions"`
	MinViewsPerPromotion int            `json:"min_views_per_promotion"`
	Status               CampaignStatus `json:"status"`
	StartDate            *time.Time     `json:"start_date,omitempty"`
	EndDate              *time.Time     `json:"end_date,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// MaxPromotersFor returns floor(budget / payout).
func MaxPromotersFor(budget, payout int64) int {
	if payout <= 0 {
		return 0
	}
	return int(budget / payout)
}

// IsOwnedBy reports whether userID owns the campaign.
func (c *Campaign) IsOwnedBy(userID uuid.UUID) bool {
	return c.OwnerID == userID
}

// RemainingBudget is the part of the budget still held in the owner's reserve.
func (c *Campaign) RemainingBudget() int64 {
	return c.Budget - c.SpentBudget - c.RefundedBudget
}

// hasCapacity ignores status.
func (c *Campaign) hasCapacity() bool {
	return c.TotalPromotions < c.MaxPromoters &&
		c.SpentBudget+c.PayoutPerPromotion <= c.Budget
}

// CanAssignPromoter is the single admission gate.
func (c *Campaign) CanAssignPromoter() bool {
	return c.Status == CampaignActive && c.hasCapacity()
}

// AcceptsProofs reports whether admitted promoters may still submit proof at now.
func (c *Campaign) AcceptsProofs(now time.Time) bool {
	if c.Status != CampaignActive && c.Status != CampaignExhausted {
		return false
	}
	return c.EndDate == nil || !now.After(*c.EndDate)
}

// AssignPromoter consumes one slot and commits one payout of budget.
// It reports whether the campaign became exhausted.
func (c *Campaign) AssignPromoter() bool {
	c.CurrentPromoters++
	c.TotalPromotions++
	c.SpentBudget += c.PayoutPerPromotion
	if c.Status == CampaignActive && !c.hasCapacity() {
		c.Status = CampaignExhausted
		return true
	}
	return false
}

// ReleaseSlot undoes AssignPromoter for a rejected or expired promotion.
// It reports whether an exhausted campaign became active again.
func (c *Campaign) ReleaseSlot(payout int64) bool {
	if c.CurrentPromoters > 0 {
		c.CurrentPromoters--
	}
	if c.TotalPromotions > 0 {
		c.TotalPromotions--
	}
	c.SpentBudget -= payout
	if c.SpentBudget < 0 {
		c.SpentBudget = 0
	}
	if c.Status == CampaignExhausted && c.hasCapacity() {
		c.Status = CampaignActive
		return true
	}
	return false
}

// RecordValidated counts a promotion that passed review.
func (c *Campaign) RecordValidated() {
	c.ValidatedPromotions++
}

// RecordPaid counts a released payout. An exhausted campaign with no live
// promoters left becomes completed; the return value reports that.
func (c *Campaign) RecordPaid(payout int64) bool {
	c.PaidPromotions++
	c.PaidOutBudget += payout
	if c.CurrentPromoters > 0 {
		c.CurrentPromoters--
	}
	if c.Status == CampaignExhausted && c.CurrentPromoters == 0 {
		c.Status = CampaignCompleted
		return true
	}
	return false
}

// MarkRefunded records amount returned to the owner's balance.
func (c *Campaign) MarkRefunded(amount int64) {
	c.RefundedBudget += amount
}

// UpdateStatus validates and applies a status change, returning the
// activity entry to persist.
func (c *Campaign) UpdateStatus(next CampaignStatus, by *uuid.UUID, details string, now time.Time) (ActivityEntry, error) {
	if !next.IsValid() {
		return ActivityEntry{}, apperror.Validation(fmt.Sprintf("unknown campaign status %q", next))
	}
	if next == c.Status {
		return ActivityEntry{}, apperror.ErrConflict(fmt.Sprintf("campaign is already %s", next))
	}
	if c.Status.IsClosed() {
		return ActivityEntry{}, apperror.ErrInvalidTransition("campaign", string(c.Status), string(next))
	}

	prev := c.Status
	c.Status = next
	c.UpdatedAt = now

	msg := fmt.Sprintf("%s -> %s", prev, next)
	if details != "" {
		msg += ": " + details
	}
	return NewActivity(EntityCampaign, c.ID, ActionStatusChanged, by, msg, now), nil
}
