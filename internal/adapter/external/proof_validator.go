package external

import (
	"context"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const validateProofPath = "/v1/proofs/validate"

// ProofValidator implements ports.ProofValidator against the review API.
// The zero value is disabled.
type ProofValidator struct {
	enabled bool
	client  jsonClient
	log     zerolog.Logger
}

type validateProofRequest struct {
	PromotionID uuid.UUID `json:"promotion_id"`
	CampaignID  uuid.UUID `json:"campaign_id"`
	UPI         string    `json:"upi"`
	MediaURLs   []string  `json:"media_urls"`
	Views       int       `json:"views"`
}

// NewProofValidator creates a validator client. When enabled is false every
// call returns nil, nil without touching the network.
func NewProofValidator(enabled bool, baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *ProofValidator {
	return &ProofValidator{
		enabled: enabled,
		client:  newJSONClient("proof validator", baseURL, apiKey, timeout),
		log:     log.With().Str("component", "proof_validator").Logger(),
	}
}

// ValidateProofSubmission asks the reviewer for a verdict on the submitted media.
func (v *ProofValidator) ValidateProofSubmission(ctx context.Context, mediaURLs []string, promotion *domain.Promotion) (*ports.ProofVerdict, error) {
	if v == nil || !v.enabled {
		return nil, nil
	}

	in := validateProofRequest{
		PromotionID: promotion.ID,
		CampaignID:  promotion.CampaignID,
		UPI:         promotion.UPI,
		MediaURLs:   mediaURLs,
		Views:       promotion.ProofViews,
	}
	var verdict ports.ProofVerdict
	if err := v.client.post(ctx, validateProofPath, in, &verdict); err != nil {
		return nil, err
	}

	v.log.Debug().
		Str("promotion_id", promotion.ID.String()).
		Bool("valid", verdict.IsValid).
		Float64("confidence", verdict.Confidence).
		Msg("proof reviewed")
	return &verdict, nil
}
