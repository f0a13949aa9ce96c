package external

import (
	"context"
	"errors"
	"net/http"
	"time"

	"status-promo-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

const payoutsPath = "/v1/payouts"

// PaymentGateway implements ports.PaymentGateway against the payout API.
type PaymentGateway struct {
	client jsonClient
	log    zerolog.Logger
}

// NewPaymentGateway creates a gateway client.
func NewPaymentGateway(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *PaymentGateway {
	return &PaymentGateway{
		client: newJSONClient("payment gateway", baseURL, apiKey, timeout),
		log:    log.With().Str("component", "payment_gateway").Logger(),
	}
}

// ProcessPayment submits one bank transfer. A 402 or 422 answer is a declined
// transfer and comes back as Success=false with no error; transport failures
// and other statuses are errors, leaving the outcome unknown to the caller.
func (g *PaymentGateway) ProcessPayment(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutResult, error) {
	var result ports.PayoutResult
	err := g.client.post(ctx, payoutsPath, req, &result)

	var se *statusError
	if errors.As(err, &se) && (se.code == http.StatusPaymentRequired || se.code == http.StatusUnprocessableEntity) {
		g.log.Info().
			Str("reference", req.Reference).
			Int("status", se.code).
			Msg("payout declined")
		return &ports.PayoutResult{Success: false, Reference: req.Reference, Message: se.body}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Reference == "" {
		result.Reference = req.Reference
	}
	g.log.Debug().
		Str("reference", req.Reference).
		Bool("success", result.Success).
		Msg("payout processed")
	return &result, nil
}
