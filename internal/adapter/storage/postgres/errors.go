package postgres

import (
	"errors"

	"status-promo-marketplace/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Unique constraints with a domain meaning.
const (
	constraintPromotionPair = "promotions_campaign_promoter_key"
	constraintPromotionUPI  = "promotions_upi_key"
	constraintWithdrawalRef = "withdrawals_user_reference_key"
	constraintLedgerRef     = "wallet_transactions_reference_key"
)

// mapConstraintError turns known unique violations into AppErrors and
// returns err unchanged otherwise.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintPromotionPair:
		return apperror.ErrDuplicatePromotion()
	case constraintPromotionUPI:
		return apperror.ErrUPITaken()
	case constraintWithdrawalRef:
		return apperror.ErrDuplicateWithdrawal()
	case constraintLedgerRef:
		return apperror.ErrDuplicateDeposit()
	}
	return apperror.ErrConflict("duplicate record")
}
