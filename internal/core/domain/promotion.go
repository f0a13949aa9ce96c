package domain

import (
	"fmt"
	"time"

	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
)

// PromotionStatus represents the lifecycle state of a promotion.
type PromotionStatus string

const (
	PromotionPending   PromotionStatus = "pending"
	PromotionSubmitted PromotionStatus = "submitted"
	PromotionValidated PromotionStatus = "validated"
	PromotionRejected  PromotionStatus = "rejected"
	PromotionPaid      PromotionStatus = "paid"
)

// ExpiryRejectionReason is recorded on promotions the sweeper expires.
const ExpiryRejectionReason = "Proof not submitted within 24 hours of creation."

// UPILength is the number of digits in a promotion tracking code.
const UPILength = 6

var promotionTransitions = map[PromotionStatus][]PromotionStatus{
	PromotionPending:   {PromotionSubmitted, PromotionRejected},
	PromotionSubmitted: {PromotionValidated, PromotionRejected},
	PromotionValidated: {PromotionPaid},
}

// IsValid reports whether s is a known status.
func (s PromotionStatus) IsValid() bool {
	switch s {
	case PromotionPending, PromotionSubmitted, PromotionValidated, PromotionRejected, PromotionPaid:
		return true
	}
	return false
}

// IsTerminal returns true if the promotion is in a final state.
func (s PromotionStatus) IsTerminal() bool {
	return s == PromotionRejected || s == PromotionPaid
}

// HoldsEscrow reports whether the payout still sits in the promoter's reserve.
func (s PromotionStatus) HoldsEscrow() bool {
	return s == PromotionPending || s == PromotionSubmitted || s == PromotionValidated
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PromotionStatus) CanTransitionTo(next PromotionStatus) bool {
	for _, allowed := range promotionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Promotion is one promoter's claim on one campaign. PayoutAmount is fixed
// at creation.
type Promotion struct {
	ID              uuid.UUID       `json:"id"`
	CampaignID      uuid.UUID       `json:"campaign_id"`
	PromoterID      uuid.UUID       `json:"promoter_id"`
	MarketerID      uuid.UUID       `json:"marketer_id"`
	Status          PromotionStatus `json:"status"`
	PayoutAmount    int64           `json:"payout_amount"`
	UPI             string          `json:"upi"`
	ProofMedia      []string        `json:"proof_media"`
	ProofViews      int             `json:"proof_views"`
	IsDownloaded    bool            `json:"is_downloaded"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	ValidatedBy     *uuid.UUID      `json:"validated_by,omitempty"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	ValidatedAt     *time.Time      `json:"validated_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPromotion creates a pending promotion for campaign c.
func NewPromotion(c *Campaign, promoterID uuid.UUID, upi string, now time.Time) *Promotion {
	return &Promotion{
		ID:           uuid.New(),
		CampaignID:   c.ID,
		PromoterID:   promoterID,
		MarketerID:   c.OwnerID,
		Status:       PromotionPending,
		PayoutAmount: c.PayoutPerPromotion,
		UPI:          upi,
		ProofMedia:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SubmissionDeadline is the last instant proof is accepted.
func (p *Promotion) SubmissionDeadline(window time.Duration) time.Time {
	return p.CreatedAt.Add(window)
}

func (p *Promotion) transition(next PromotionStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return apperror.ErrInvalidTransition("promotion", string(p.Status), string(next))
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// Submit records proof and moves pending -> submitted.
func (p *Promotion) Submit(media []string, views int, now time.Time) error {
	if err := p.transition(PromotionSubmitted, now); err != nil {
		return err
	}
	p.ProofMedia = append([]string(nil), media...)
	p.ProofViews = views
	p.SubmittedAt = &now
	return nil
}

// Validate moves submitted -> validated.
func (p *Promotion) Validate(by uuid.UUID, now time.Time) error {
	if err := p.transition(PromotionValidated, now); err != nil {
		return err
	}
	p.ValidatedBy = &by
	p.ValidatedAt = &now
	return nil
}

// MarkPaid moves validated -> paid.
func (p *Promotion) MarkPaid(now time.Time) error {
	if err := p.transition(PromotionPaid, now); err != nil {
		return err
	}
	p.PaidAt = &now
	return nil
}

// Reject moves pending or submitted -> rejected.
func (p *Promotion) Reject(reason string, now time.Time) error {
	if reason == "" {
		return apperror.Validation("rejection reason is required")
	}
	if err := p.transition(PromotionRejected, now); err != nil {
		return err
	}
	p.RejectionReason = &reason
	p.RejectedAt = &now
	return nil
}

// Describe renders a short label for logs and activity entries.
func (p *Promotion) Describe() string {
	return fmt.Sprintf("promotion %s (upi %s)", p.ID, p.UPI)
}
