package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL      = 24 * time.Hour
	maxReferenceIDLen   = 64
	paymentGatewayLabel = "payment gateway"
)

// WithdrawalOptions tunes the withdrawal saga.
type WithdrawalOptions struct {
	Fee            domain.FeePolicy
	IdempotencyTTL time.Duration
}

// DefaultWithdrawalOptions returns a 1.5% fee with a floor of 100 minor units.
func DefaultWithdrawalOptions() WithdrawalOptions {
	return WithdrawalOptions{
		Fee:            domain.FeePolicy{Rate: decimal.RequireFromString("0.015"), Minimum: 100},
		IdempotencyTTL: idempotencyTTL,
	}
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	repos      Repos
	ledger     *Ledger
	gateway    ports.PaymentGateway
	idempCache ports.IdempotencyCache
	publisher  ports.EventPublisher
	opts       WithdrawalOptions
	log        zerolog.Logger
	now        Clock
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	repos Repos,
	ledger *Ledger,
	gateway ports.PaymentGateway,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	opts WithdrawalOptions,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = idempotencyTTL
	}
	return &WithdrawalServiceImpl{
		repos:      repos,
		ledger:     ledger,
		gateway:    gateway,
		idempCache: idempCache,
		publisher:  publisher,
		opts:       opts,
		log:        log,
		now:        systemClock,
	}
}

// Withdraw debits amount+fee, calls the payment gateway outside any
// transaction, then settles or reverses the debit in a second transaction.
// A repeated reference returns the original withdrawal.
func (s *WithdrawalServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	if err := validateWithdrawal(&req); err != nil {
		return nil, err
	}

	idempKey := domain.BuildWithdrawalIdempotencyKey(req.UserID, req.ReferenceID)

	// Layer 1: Redis idempotency check
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalCachedWithdrawal(cached)
		}
	}

	// Layer 2: DB idempotency check
	existing, err := s.repos.Withdrawals.GetByReference(ctx, req.UserID, req.ReferenceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	w, err := s.debit(ctx, req)
	if err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			// Lost a race with the same reference; the winner's row is authoritative.
			if existing, lookupErr := s.repos.Withdrawals.GetByReference(ctx, req.UserID, req.ReferenceID); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	// The debit is durable and the payout cannot be recalled once sent, so
	// neither the gateway call nor the settlement follows request
	// cancellation. The gateway client's own timeout bounds the call.
	settleCtx := context.WithoutCancel(ctx)

	res, gwErr := s.gateway.ProcessPayment(settleCtx, ports.PayoutRequest{
		BankCode:      w.BankCode,
		AccountNumber: w.AccountNumber,
		AccountName:   w.AccountName,
		Amount:        w.Amount,
		Reference:     w.ID.String(),
	})

	if gwErr == nil && res != nil && res.Success {
		if err := s.complete(settleCtx, w, res.Reference); err != nil {
			return nil, err
		}
	} else {
		reason := "declined"
		switch {
		case gwErr != nil:
			reason = gwErr.Error()
		case res != nil && res.Message != "":
			reason = res.Message
		}
		if err := s.fail(settleCtx, w, reason); err != nil {
			return nil, err
		}
	}

	s.cache(settleCtx, idempKey, w)
	publish(settleCtx, s.publisher, s.log, ports.TopicWithdrawals, ports.Event{
		Type: "withdrawal." + string(w.Status), EntityID: w.ID, UserIDs: []uuid.UUID{w.UserID}, OccurredAt: w.UpdatedAt,
		Payload: map[string]any{"amount": w.Amount, "fee": w.Fee},
	})

	if w.Status == domain.WithdrawalFailed {
		cause := gwErr
		if cause == nil {
			cause = errors.New(*w.FailureReason)
		}
		return nil, apperror.ErrExternalService(paymentGatewayLabel, cause).
			WithDetail("withdrawal_id", w.ID).
			WithDetail("refunded", w.TotalDebit)
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("user_id", w.UserID.String()).
		Int64("amount", w.Amount).
		Int64("fee", w.Fee).
		Msg("withdrawal completed")

	return w, nil
}

func validateWithdrawal(req *ports.WithdrawalRequest) error {
	req.ReferenceID = strings.TrimSpace(req.ReferenceID)
	req.BankCode = strings.TrimSpace(req.BankCode)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.AccountName = strings.TrimSpace(req.AccountName)
	if req.Wallet == "" {
		req.Wallet = domain.WalletPromoter
	}
	switch {
	case req.Amount <= 0:
		return apperror.ErrInvalidAmount()
	case !req.Wallet.IsValid():
		return apperror.Validation(fmt.Sprintf("unknown wallet %q", req.Wallet))
	case req.ReferenceID == "" || len(req.ReferenceID) > maxReferenceIDLen:
		return apperror.Validation(fmt.Sprintf("reference_id must be 1-%d characters", maxReferenceIDLen))
	case req.BankCode == "" || req.AccountNumber == "" || req.AccountName == "":
		return apperror.Validation("bank code, account number and account name are required")
	}
	return nil
}

// debit is the first saga step: it commits the pending debit and the
// withdrawal row before the gateway is called.
func (s *WithdrawalServiceImpl) debit(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	fee := s.opts.Fee.Fee(req.Amount)
	total := req.Amount + fee

	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	users, err := lockUsers(ctx, dbTx, s.repos.Users, req.UserID)
	if err != nil {
		return nil, err
	}
	user := users[req.UserID]
	if available := user.Wallet(req.Wallet).Balance; available < total {
		return nil, apperror.ErrInsufficientFunds(available, total).WithDetail("fee", fee)
	}

	now := s.now()
	w := &domain.Withdrawal{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Wallet:        req.Wallet,
		ReferenceID:   req.ReferenceID,
		Amount:        req.Amount,
		Fee:           fee,
		TotalDebit:    total,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Status:        domain.WithdrawalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	refs := domain.TxRefs{WithdrawalID: uuidPtr(w.ID), Description: fmt.Sprintf("Withdrawal %s (fee %d)", w.ReferenceID, fee)}
	entry, err := s.ledger.DebitPending(ctx, dbTx, user, req.Wallet, total, refs)
	if err != nil {
		return nil, err
	}
	w.DebitTransactionID = entry.ID

	if err := s.repos.Withdrawals.Create(ctx, dbTx, w); err != nil {
		return nil, asAppError(err, "create withdrawal")
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return w, nil
}

func (s *WithdrawalServiceImpl) complete(ctx context.Context, w *domain.Withdrawal, gatewayRef string) error {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.lockWithdrawal(ctx, dbTx, w.ID)
	if err != nil {
		return err
	}
	if locked.Status.IsTerminal() {
		*w = *locked
		return nil
	}

	if err := s.ledger.Settle(ctx, dbTx, locked.DebitTransactionID, domain.TxStatusSuccessful); err != nil {
		return err
	}
	locked.Status = domain.WithdrawalCompleted
	locked.GatewayReference = &gatewayRef
	locked.UpdatedAt = s.now()
	if err := s.repos.Withdrawals.Update(ctx, dbTx, locked); err != nil {
		return apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	*w = *locked
	return nil
}

// fail is the compensating step: the pending debit is marked failed and the
// full amount is credited back.
func (s *WithdrawalServiceImpl) fail(ctx context.Context, w *domain.Withdrawal, reason string) error {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	users, err := lockUsers(ctx, dbTx, s.repos.Users, w.UserID)
	if err != nil {
		return err
	}
	locked, err := s.lockWithdrawal(ctx, dbTx, w.ID)
	if err != nil {
		return err
	}
	if locked.Status.IsTerminal() {
		*w = *locked
		return nil
	}

	if err := s.ledger.Settle(ctx, dbTx, locked.DebitTransactionID, domain.TxStatusFailed); err != nil {
		return err
	}
	refs := domain.TxRefs{WithdrawalID: uuidPtr(locked.ID), Description: fmt.Sprintf("Withdrawal %s reversed", locked.ReferenceID)}
	if err := s.ledger.ReverseDebit(ctx, dbTx, users[w.UserID], locked.Wallet, locked.TotalDebit, refs); err != nil {
		return err
	}
	locked.Status = domain.WithdrawalFailed
	locked.FailureReason = &reason
	locked.UpdatedAt = s.now()
	if err := s.repos.Withdrawals.Update(ctx, dbTx, locked); err != nil {
		return apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	*w = *locked

	s.log.Warn().
		Str("withdrawal_id", w.ID.String()).
		Str("reason", reason).
		Int64("refunded", w.TotalDebit).
		Msg("withdrawal failed and reversed")
	return nil
}

func (s *WithdrawalServiceImpl) lockWithdrawal(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.repos.Withdrawals.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	return w, nil
}

func (s *WithdrawalServiceImpl) cache(ctx context.Context, key string, w *domain.Withdrawal) {
	if s.idempCache == nil {
		return
	}
	// Cached copies are masked: the cache is not sealed like the database.
	respJSON, err := json.Marshal(w.Masked())
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal withdrawal for cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, respJSON, s.opts.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func unmarshalCachedWithdrawal(data []byte) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached withdrawal: %w", err))
	}
	return &w, nil
}

// GetWithdrawal returns one of the user's withdrawals.
func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, id, userID uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.repos.Withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if w == nil || w.UserID != userID {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	return w, nil
}
