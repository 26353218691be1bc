// Package service contains the business logic layer: eligibility checks,
// gift listing, and the claim submission flow.
//
// The submission flow is the heart of the application. The backing store is
// an external board API with no transactions and no unique constraints, so
// "check eligibility, take one unit of stock, record the claim" cannot be
// done atomically. SubmitClaim approximates it with an ordered sequence of
// checks and a compensating rollback, and the comments on it spell out
// which races remain open.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/talmor/giftdesk/internal/apperror"
	"github.com/talmor/giftdesk/internal/catalog"
	"github.com/talmor/giftdesk/internal/metrics"
	"github.com/talmor/giftdesk/internal/model"
	"github.com/talmor/giftdesk/internal/repository"
)

// Identity is the result of verifying a user id against the boards.
type Identity struct {
	Eligible       bool `json:"eligible"`
	AlreadyClaimed bool `json:"alreadyClaimed"`
}

// ClaimService orchestrates the claim flow over the repository interfaces.
//
// Each incoming request runs its own instance of the flow with no shared
// lock — two concurrent submissions race independently, and the board API
// gives us no mutual exclusion to lean on. The mitigations are:
// claims-board reads are never cached, stock decrements verify their own
// write, and a failed claim write after a reservation triggers a
// compensating increment.
type ClaimService struct {
	catalog     *catalog.Catalog
	eligibility []repository.Membership
	claims      repository.Claims
	inventory   repository.Inventory
	directory   repository.Directory // optional; nil disables display names
	logger      *slog.Logger
}

func NewClaimService(
	cat *catalog.Catalog,
	eligibility []repository.Membership,
	claims repository.Claims,
	inventory repository.Inventory,
	directory repository.Directory,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		catalog:     cat,
		eligibility: eligibility,
		claims:      claims,
		inventory:   inventory,
		directory:   directory,
		logger:      logger,
	}
}

// CheckEligibility reports whether the user id appears on every configured
// eligibility board. The boards are checked concurrently under one shared
// cancellation signal; the first definitive "no" or hard failure cancels
// the siblings. A transport failure is "verification unavailable", never
// "ineligible".
func (s *ClaimService) CheckEligibility(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, apperror.ValidationFailed("userId", "user ID is required")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, board := range s.eligibility {
		g.Go(func() error {
			found, err := board.Contains(ctx, userID)
			if err != nil {
				return fmt.Errorf("checking %s board: %w", board.Name(), err)
			}
			if !found {
				return fmt.Errorf("%s board: %w", board.Name(), errNotListed)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, errNotListed) {
			return false, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, apperror.Unavailable(err)
		}
		s.logger.Error("eligibility check failed", slog.String("error", err.Error()))
		return false, apperror.Unavailable(err)
	}
	return true, nil
}

// errNotListed distinguishes "definitively absent" from a failed lookup
// inside the errgroup above.
var errNotListed = errors.New("not listed")

// VerifyIdentity combines the eligibility check with a fresh claims-board
// read. The claims read is never cached, so calling this immediately after
// a successful claim reports AlreadyClaimed.
func (s *ClaimService) VerifyIdentity(ctx context.Context, userID string) (*Identity, error) {
	eligible, err := s.CheckEligibility(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return &Identity{}, nil
	}

	claimed, err := s.claims.HasClaim(ctx, strings.TrimSpace(userID))
	if err != nil {
		s.logger.Error("claims lookup failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(err)
	}
	return &Identity{Eligible: true, AlreadyClaimed: claimed}, nil
}

// ListGifts returns the catalog with remaining stock per gift.
func (s *ClaimService) ListGifts(ctx context.Context) ([]model.GiftAvailability, error) {
	gifts := s.catalog.Gifts()
	out := make([]model.GiftAvailability, 0, len(gifts))
	for _, gift := range gifts {
		remaining, err := s.remaining(ctx, gift)
		if err != nil {
			s.logger.Error("remaining-stock read failed",
				slog.String("gift", gift.ID),
				slog.String("error", err.Error()),
			)
			return nil, apperror.Unavailable(err)
		}
		out = append(out, model.GiftAvailability{Gift: gift, Remaining: remaining})
	}
	return out, nil
}

// remaining prefers the live inventory board; when it is absent (or the
// gift has no row on it) the count is derived from the catalog's starting
// stock minus claims recorded for the gift's title.
func (s *ClaimService) remaining(ctx context.Context, gift model.Gift) (int, error) {
	if s.inventory.Configured() {
		stock, ok, err := s.inventory.CurrentStock(ctx, gift.ID)
		if err != nil {
			return 0, err
		}
		if ok {
			return stock, nil
		}
	}
	claimed, err := s.claims.CountByGiftTitle(ctx, gift.Title)
	if err != nil {
		return 0, err
	}
	return gift.Stock - claimed, nil
}

// SubmitClaim runs the end-to-end claim flow:
//
//	validate → duplicate check → stock check → reserve → write claim
//
// When the claim write fails after stock was reserved, the reservation is
// rolled back with a best-effort increment and the caller gets a transient
// error asking to retry.
//
// Known residual races, accepted by design: two in-flight submissions from
// the same user can both pass the duplicate check before either writes, and
// two submissions for the last unit can both read the same stock value
// before either decrements. The board store offers nothing to close these
// windows; they are bounded by never caching the duplicate check and by
// verifying the decrement's write.
func (s *ClaimService) SubmitClaim(ctx context.Context, userID, giftID string) (*model.Receipt, error) {
	userID = strings.TrimSpace(userID)
	giftID = strings.TrimSpace(giftID)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}
	if giftID == "" {
		return nil, apperror.ValidationFailed("giftId", "gift ID is required")
	}
	gift, ok := s.catalog.Get(giftID)
	if !ok {
		return nil, apperror.ValidationFailed("giftId", fmt.Sprintf("unknown gift %q", giftID))
	}

	submissionID := xid.New().String()
	log := s.logger.With(
		slog.String("submission", submissionID),
		slog.String("gift", giftID),
	)

	// Duplicate check. Always a fresh read — see ClaimsBoard.
	claimed, err := s.claims.HasClaim(ctx, userID)
	if err != nil {
		log.Error("duplicate check failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(err)
	}
	if claimed {
		metrics.ClaimSubmissions.WithLabelValues("duplicate").Inc()
		return nil, apperror.AlreadyClaimed()
	}

	// Stock check, and reservation when a live inventory board exists.
	// Without one there is nothing to reserve: the fallback count is checked
	// and the write proceeds unguarded (the documented oversubscription
	// window of the static-stock path).
	reserved := false
	if s.inventory.Configured() {
		stock, live, err := s.inventory.CurrentStock(ctx, giftID)
		if err != nil {
			log.Error("stock read failed", slog.String("error", err.Error()))
			return nil, apperror.Unavailable(err)
		}
		if live {
			if stock <= 0 {
				metrics.ClaimSubmissions.WithLabelValues("out_of_stock").Inc()
				return nil, apperror.OutOfStock(gift.Title)
			}
			if err := s.inventory.Decrement(ctx, giftID); err != nil {
				return nil, s.decrementError(log, gift, err)
			}
			reserved = true
		} else if err := s.checkStaticStock(ctx, log, gift); err != nil {
			return nil, err
		}
	} else if err := s.checkStaticStock(ctx, log, gift); err != nil {
		return nil, err
	}

	// Advisory: a display name makes the claim row readable for operators,
	// but its absence never blocks the claim.
	var warnings []string
	displayName := ""
	if s.directory != nil {
		name, err := s.directory.DisplayName(ctx, userID)
		if err != nil {
			log.Warn("display-name lookup failed", slog.String("error", err.Error()))
			warnings = append(warnings, "display name unavailable")
		} else {
			displayName = name
		}
	}

	claimID, err := s.claims.Create(ctx, &model.Claim{
		UserID:      userID,
		GiftID:      giftID,
		GiftTitle:   gift.Title,
		DisplayName: displayName,
	})
	if err != nil {
		log.Error("claim write failed", slog.String("error", err.Error()))
		if reserved {
			// Compensate. Failures are logged by the accessor and counted
			// here; there is no automated reconciliation beyond this, which
			// leaves inventory short by one if the increment also fails.
			if ierr := s.inventory.Increment(ctx, giftID); ierr != nil {
				metrics.CompensationFailures.Inc()
				log.Error("compensation failed, inventory short by one",
					slog.String("error", ierr.Error()),
				)
			}
			metrics.ClaimSubmissions.WithLabelValues("rolled_back").Inc()
		} else {
			metrics.ClaimSubmissions.WithLabelValues("failed").Inc()
		}
		return nil, apperror.SubmissionFailed(err)
	}

	metrics.ClaimSubmissions.WithLabelValues("committed").Inc()
	log.Info("claim committed", slog.String("claim", claimID))

	return &model.Receipt{
		ClaimID:      claimID,
		SubmissionID: submissionID,
		GiftTitle:    gift.Title,
		Warnings:     warnings,
	}, nil
}

func (s *ClaimService) checkStaticStock(ctx context.Context, log *slog.Logger, gift model.Gift) error {
	claimedCount, err := s.claims.CountByGiftTitle(ctx, gift.Title)
	if err != nil {
		log.Error("claim count failed", slog.String("error", err.Error()))
		return apperror.Unavailable(err)
	}
	remaining := gift.Stock - claimedCount
	log.Info("static stock check", slog.Int("remaining", remaining))
	if remaining <= 0 {
		metrics.ClaimSubmissions.WithLabelValues("out_of_stock").Inc()
		return apperror.OutOfStock(gift.Title)
	}
	return nil
}

func (s *ClaimService) decrementError(log *slog.Logger, gift model.Gift, err error) error {
	switch {
	case errors.Is(err, repository.ErrNoStock):
		metrics.ClaimSubmissions.WithLabelValues("out_of_stock").Inc()
		return apperror.OutOfStock(gift.Title)
	case errors.Is(err, repository.ErrUpdateNotVerified), errors.Is(err, repository.ErrRowNotFound):
		log.Error("stock reservation failed", slog.String("error", err.Error()))
		metrics.ClaimSubmissions.WithLabelValues("failed").Inc()
		return apperror.InventoryUpdateFailed(gift.ID)
	default:
		log.Error("stock reservation failed", slog.String("error", err.Error()))
		return apperror.Unavailable(err)
	}
}
