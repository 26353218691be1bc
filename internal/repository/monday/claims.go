package monday

import (
	"context"
	"log/slog"

	"github.com/talmor/giftdesk/internal/model"
)

// ClaimsBoard implements repository.Claims. Its lookup is deliberately
// built without a cache: a stale "no claim" answer here is how the same
// user ends up with two gifts.
type ClaimsBoard struct {
	client       *Client
	boardID      string
	userIDCol    string
	giftTitleCol string
	userNameCol  string
	lookup       *Lookup
	pageSize     int
	maxPages     int
	logger       *slog.Logger
}

func NewClaimsBoard(client *Client, boardID, userIDCol, giftTitleCol, userNameCol string, logger *slog.Logger) *ClaimsBoard {
	return &ClaimsBoard{
		client:       client,
		boardID:      boardID,
		userIDCol:    userIDCol,
		giftTitleCol: giftTitleCol,
		userNameCol:  userNameCol,
		lookup:       NewLookup(client, boardID, userIDCol, logger),
		pageSize:     defaultPageSize,
		maxPages:     defaultMaxPages,
		logger:       logger,
	}
}

func (cb *ClaimsBoard) HasClaim(ctx context.Context, userID string) (bool, error) {
	return cb.lookup.Exists(ctx, userID)
}

// Create writes the claim row. The row's display name is the user's name
// when we have one, the raw id otherwise — matching how the user board
// names its rows.
func (cb *ClaimsBoard) Create(ctx context.Context, claim *model.Claim) (string, error) {
	values := map[string]string{
		cb.userIDCol:    claim.UserID,
		cb.giftTitleCol: claim.GiftTitle,
	}
	if cb.userNameCol != "" && claim.DisplayName != "" {
		values[cb.userNameCol] = claim.DisplayName
	}

	itemName := claim.DisplayName
	if itemName == "" {
		itemName = claim.UserID
	}

	return cb.client.CreateItem(ctx, cb.boardID, itemName, values)
}

// CountByGiftTitle scans the claims board and counts rows for one gift.
// This backs the static-stock fallback (remaining = initial - claimed) when
// no live inventory board is configured.
func (cb *ClaimsBoard) CountByGiftTitle(ctx context.Context, title string) (int, error) {
	count := 0
	cursor := ""
	for page := 0; page < cb.maxPages; page++ {
		p, err := cb.client.ItemsPage(ctx, cb.boardID, []string{cb.giftTitleCol}, cursor, cb.pageSize)
		if err != nil {
			return 0, err
		}
		for _, item := range p.Items {
			if item.Text(cb.giftTitleCol) == title {
				count++
			}
		}
		if p.Cursor == "" {
			return count, nil
		}
		cursor = p.Cursor
	}
	cb.logger.Warn("claim count hit page cap, count may be low",
		slog.String("gift", title),
		slog.Int("pages", cb.maxPages),
	)
	return count, nil
}
