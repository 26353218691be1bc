// Package repository defines the interfaces the service layer consumes.
//
// Everything this application stores lives in external monday.com boards, so
// the implementations (internal/repository/monday) are API clients rather
// than database adapters — but the layering is the same: the service depends
// on these interfaces, never on the transport, which keeps the claim logic
// testable with in-memory mocks.
package repository

import (
	"context"
	"errors"

	"github.com/talmor/giftdesk/internal/model"
)

// Narrow errors raised by implementations. The service layer interprets
// these and maps them to user-facing apperror kinds.
var (
	// ErrNoStock means a decrement found the remaining count at or below zero.
	ErrNoStock = errors.New("no remaining stock")
	// ErrRowNotFound means a gift has no row on the inventory board.
	ErrRowNotFound = errors.New("inventory row not found")
	// ErrUpdateNotVerified means every mutation attempt failed its
	// verification re-read; the board may be in an incompatible state.
	ErrUpdateNotVerified = errors.New("stock update could not be verified")
)

// Membership answers whether a user id appears on one eligibility board.
type Membership interface {
	// Name identifies the board in logs ("users", "survey").
	Name() string
	Contains(ctx context.Context, userID string) (bool, error)
}

// Directory resolves a user id to a display name. Lookups are advisory:
// callers treat failures as a missing name, never as a fatal error.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Claims is the claims board. HasClaim must always hit the backing store —
// implementations must not cache it, because duplicate prevention depends
// on reading the freshest state.
type Claims interface {
	HasClaim(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, claim *model.Claim) (string, error)
	CountByGiftTitle(ctx context.Context, title string) (int, error)
}

// Inventory is the live stock board. The board offers no atomic decrement,
// so Decrement is read-modify-write with a verification re-read; the racy
// window this leaves open is accepted and documented at the service level.
type Inventory interface {
	// Configured reports whether a live inventory board exists at all.
	// When false the service falls back to counting claims per gift.
	Configured() bool
	// CurrentStock returns (stock, true) or (0, false) when the gift has no
	// inventory row or no board is configured.
	CurrentStock(ctx context.Context, giftID string) (int, bool, error)
	// Decrement reserves one unit. Fails with ErrNoStock, ErrRowNotFound or
	// ErrUpdateNotVerified.
	Decrement(ctx context.Context, giftID string) error
	// Increment is the best-effort compensating action. Implementations log
	// failures themselves; the returned error is informational and callers
	// must not propagate it.
	Increment(ctx context.Context, giftID string) error
}
