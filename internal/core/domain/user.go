package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Role grants access to one side of the marketplace.
type Role string

const (
	RoleMarketer Role = "marketer"
	RolePromoter Role = "promoter"
	RoleAdmin    Role = "admin"
)

// User owns one marketer wallet and one promoter wallet.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Roles          []Role    `json:"roles"`
	MarketerWallet Wallet    `json:"marketer_wallet"`
	PromoterWallet Wallet    `json:"promoter_wallet"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds role r.
func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Wallet returns a pointer to the wallet of the given kind so ledger
// operations mutate the user in place.
func (u *User) Wallet(kind WalletKind) *Wallet {
	if kind == WalletPromoter {
		return &u.PromoterWallet
	}
	return &u.MarketerWallet
}

// SortUserIDs orders ids by their byte value. Rows are locked in this order
// to keep concurrent transactions from deadlocking.
func SortUserIDs(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && bytes.Compare(out[j][:], out[j-1][:]) < 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
