package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"status-promo-marketplace/internal/core/domain"
	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	repos  Repos
	ledger *Ledger
	log    zerolog.Logger
	now    func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(repos Repos, ledger *Ledger, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{repos: repos, ledger: ledger, log: log, now: systemClock}
}

// ProvisionUser creates an empty-wallet user for an identity the auth service
// vouched for. An existing user is returned untouched.
func (s *WalletServiceImpl) ProvisionUser(ctx context.Context, req ports.ProvisionUserRequest) (*domain.User, bool, error) {
	if req.UserID == uuid.Nil {
		return nil, false, apperror.Validation("user id is required")
	}
	existing, err := s.repos.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if existing != nil {
		return existing, false, nil
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		req.Username = "user-" + req.UserID.String()[:8]
	}
	now := s.now()
	u := &domain.User{
		ID:        req.UserID,
		Username:  req.Username,
		Email:     strings.TrimSpace(req.Email),
		Roles:     append([]domain.Role(nil), req.Roles...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Users.Create(ctx, u); err != nil {
		if !apperror.IsKind(err, apperror.KindConflict) {
			return nil, false, apperror.InternalError(fmt.Errorf("create user: %w", err))
		}
		// Lost a race with a concurrent first request for the same id.
		if again, getErr := s.repos.Users.GetByID(ctx, req.UserID); getErr == nil && again != nil {
			return again, false, nil
		}
		return nil, false, err
	}

	s.log.Info().
		Str("user_id", u.ID.String()).
		Str("username", u.Username).
		Msg("user provisioned")

	return u, true, nil
}

// Deposit credits funds the payment gateway has already confirmed. The
// reference is booked once per user: a replay returns the original entry,
// and a replay with a different amount or wallet is a conflict.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.WalletTransaction, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Wallet == "" {
		req.Wallet = domain.WalletMarketer
	}
	if !req.Wallet.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown wallet %q", req.Wallet))
	}
	if req.Reference == "" {
		return nil, apperror.Validation("payment reference is required")
	}

	entry, err := s.deposit(ctx, req)
	if apperror.IsKind(err, apperror.KindConflict) {
		// A concurrent request booked the reference first.
		return s.replayDeposit(ctx, req)
	}
	return entry, err
}

func (s *WalletServiceImpl) deposit(ctx context.Context, req ports.DepositRequest) (*domain.WalletTransaction, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	users, err := lockUsers(ctx, dbTx, s.repos.Users, req.UserID)
	if err != nil {
		return nil, err
	}

	// The user row lock serializes deposits for the same user, so this read
	// sees any committed booking of the reference.
	existing, err := s.repos.WalletTxs.GetByReference(ctx, dbTx, req.UserID, domain.CategoryDeposit, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("deposit reference check: %w", err))
	}
	if existing != nil {
		return matchDeposit(existing, req)
	}

	entry, err := s.ledger.Deposit(ctx, dbTx, users[req.UserID], req.Wallet, req.Amount,
		domain.TxRefs{Description: "Deposit " + req.Reference, Reference: req.Reference})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("wallet", string(req.Wallet)).
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("deposit credited")

	return entry, nil
}

func (s *WalletServiceImpl) replayDeposit(ctx context.Context, req ports.DepositRequest) (*domain.WalletTransaction, error) {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.repos.WalletTxs.GetByReference(ctx, dbTx, req.UserID, domain.CategoryDeposit, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("deposit reference check: %w", err))
	}
	if existing == nil {
		return nil, apperror.ErrDuplicateDeposit()
	}
	return matchDeposit(existing, req)
}

func matchDeposit(existing *domain.WalletTransaction, req ports.DepositRequest) (*domain.WalletTransaction, error) {
	if existing.Amount != req.Amount || existing.Wallet != req.Wallet {
		return nil, apperror.ErrDuplicateDeposit().
			WithDetail("reference", req.Reference).
			WithDetail("booked_amount", existing.Amount)
	}
	return existing, nil
}

// GetWallets returns the user with both wallets.
func (s *WalletServiceImpl) GetWallets(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if u == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return u, nil
}

// ListTransactions returns a page of the user's ledger.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, params ports.WalletTxListParams) ([]domain.WalletTransaction, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	txs, total, err := s.repos.WalletTxs.ListByUser(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list wallet transactions: %w", err))
	}
	return txs, total, nil
}
