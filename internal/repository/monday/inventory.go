package monday

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/talmor/giftdesk/internal/repository"
)

// UpdateStrategy is one way of writing a numeric column value. The board
// API has accepted different mutation shapes for the same column type at
// different times, so Decrement probes an ordered list of these, verifying
// each with a re-read, instead of trusting any single shape.
type UpdateStrategy struct {
	Name  string
	Apply func(ctx context.Context, c *Client, boardID, itemID, columnID string, value int) error
}

func defaultStrategies() []UpdateStrategy {
	return []UpdateStrategy{
		{
			Name: "simple_value",
			Apply: func(ctx context.Context, c *Client, boardID, itemID, columnID string, value int) error {
				return c.ChangeSimpleColumnValue(ctx, boardID, itemID, columnID, strconv.Itoa(value))
			},
		},
		{
			Name: "json_value",
			Apply: func(ctx context.Context, c *Client, boardID, itemID, columnID string, value int) error {
				return c.ChangeColumnValue(ctx, boardID, itemID, columnID, strconv.Itoa(value))
			},
		},
		{
			Name: "multi_value",
			Apply: func(ctx context.Context, c *Client, boardID, itemID, columnID string, value int) error {
				return c.ChangeMultipleColumnValues(ctx, boardID, itemID, map[string]string{columnID: strconv.Itoa(value)})
			},
		},
	}
}

// Inventory implements repository.Inventory against a live stock board:
// one row per gift, a text column holding the logical gift id and a numeric
// column holding the remaining count.
//
// Decrement is read-modify-write. Two concurrent decrements can read the
// same current value and both "succeed" — the board gives us nothing to
// prevent that. What we can do is verify our own write landed, which
// catches the far more common failure of the API accepting a mutation and
// not applying it.
type Inventory struct {
	client     *Client
	boardID    string
	giftIDCol  string
	stockCol   string
	strategies []UpdateStrategy
	pageSize   int
	maxPages   int
	logger     *slog.Logger
}

func NewInventory(client *Client, boardID, giftIDCol, stockCol string, logger *slog.Logger) *Inventory {
	return &Inventory{
		client:     client,
		boardID:    boardID,
		giftIDCol:  giftIDCol,
		stockCol:   stockCol,
		strategies: defaultStrategies(),
		pageSize:   defaultPageSize,
		maxPages:   defaultMaxPages,
		logger:     logger,
	}
}

// SetStrategies replaces the mutation probe order. Tests use this to
// simulate individual backend quirks.
func (inv *Inventory) SetStrategies(s []UpdateStrategy) { inv.strategies = s }

func (inv *Inventory) Configured() bool {
	return inv != nil && inv.boardID != ""
}

// findRow resolves a logical gift id to its board row id via a paginated
// scan. A scan, not the exact-match query, because the gift-id column's
// stored representation is not guaranteed to match server-side equality —
// comparing display text on our side is the only reliable way.
func (inv *Inventory) findRow(ctx context.Context, giftID string) (string, error) {
	cursor := ""
	for page := 0; page < inv.maxPages; page++ {
		p, err := inv.client.ItemsPage(ctx, inv.boardID, []string{inv.giftIDCol}, cursor, inv.pageSize)
		if err != nil {
			return "", err
		}
		for _, item := range p.Items {
			if strings.TrimSpace(item.Text(inv.giftIDCol)) == giftID {
				return item.ID, nil
			}
		}
		if p.Cursor == "" {
			return "", nil
		}
		cursor = p.Cursor
	}
	return "", nil
}

func (inv *Inventory) readStock(ctx context.Context, itemID string) (int, error) {
	item, err := inv.client.ItemByID(ctx, itemID, []string{inv.stockCol})
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, repository.ErrRowNotFound
	}
	return parseStock(item.Text(inv.stockCol)), nil
}

// CurrentStock returns (stock, true), or (0, false) when the board is not
// configured or the gift has no row.
func (inv *Inventory) CurrentStock(ctx context.Context, giftID string) (int, bool, error) {
	if !inv.Configured() {
		return 0, false, nil
	}
	itemID, err := inv.findRow(ctx, giftID)
	if err != nil {
		return 0, false, err
	}
	if itemID == "" {
		return 0, false, nil
	}
	stock, err := inv.readStock(ctx, itemID)
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

// Decrement reserves one unit: re-read, bail if nothing remains, then write
// current-1 through the strategy list until one attempt verifies. The
// re-read immediately before mutating keeps the race window as small as the
// backing store allows; it does not close it.
func (inv *Inventory) Decrement(ctx context.Context, giftID string) error {
	itemID, err := inv.findRow(ctx, giftID)
	if err != nil {
		return err
	}
	if itemID == "" {
		return fmt.Errorf("gift %s: %w", giftID, repository.ErrRowNotFound)
	}

	current, err := inv.readStock(ctx, itemID)
	if err != nil {
		return err
	}
	if current <= 0 {
		return fmt.Errorf("gift %s: %w", giftID, repository.ErrNoStock)
	}
	next := current - 1

	for _, strat := range inv.strategies {
		if err := strat.Apply(ctx, inv.client, inv.boardID, itemID, inv.stockCol, next); err != nil {
			inv.logger.Warn("stock mutation rejected",
				slog.String("strategy", strat.Name),
				slog.String("gift", giftID),
				slog.String("error", err.Error()),
			)
			continue
		}
		// The API sometimes acknowledges a mutation without applying it, so
		// success is only what a re-read confirms.
		got, err := inv.readStock(ctx, itemID)
		if err != nil {
			inv.logger.Warn("stock verification read failed",
				slog.String("strategy", strat.Name),
				slog.String("gift", giftID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if got == next {
			inv.logger.Info("stock decremented",
				slog.String("gift", giftID),
				slog.String("strategy", strat.Name),
				slog.Int("remaining", next),
			)
			return nil
		}
		inv.logger.Warn("stock mutation did not stick",
			slog.String("strategy", strat.Name),
			slog.String("gift", giftID),
			slog.Int("want", next),
			slog.Int("got", got),
		)
	}

	return fmt.Errorf("gift %s: %w", giftID, repository.ErrUpdateNotVerified)
}

// Increment is the compensating action for a failed claim write. It runs
// inside an already-failing path, so it is strictly best-effort: one write
// via the simplest mutation shape, no verification, failures logged and
// returned but never meant to be propagated further.
func (inv *Inventory) Increment(ctx context.Context, giftID string) error {
	if !inv.Configured() {
		return nil
	}
	itemID, err := inv.findRow(ctx, giftID)
	if err != nil || itemID == "" {
		if err != nil {
			inv.logger.Error("compensating increment: row lookup failed",
				slog.String("gift", giftID),
				slog.String("error", err.Error()),
			)
		}
		return err
	}
	current, err := inv.readStock(ctx, itemID)
	if err != nil {
		inv.logger.Error("compensating increment: stock read failed",
			slog.String("gift", giftID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if err := inv.strategies[0].Apply(ctx, inv.client, inv.boardID, itemID, inv.stockCol, current+1); err != nil {
		inv.logger.Error("compensating increment: write failed",
			slog.String("gift", giftID),
			slog.String("error", err.Error()),
		)
		return err
	}
	inv.logger.Info("stock restored after failed claim write",
		slog.String("gift", giftID),
		slog.Int("stock", current+1),
	)
	return nil
}

// parseStock turns the stock column's display text into a number. The
// column is hand-edited and rendered with formatting ("1,234 units"), so
// strip everything that isn't part of a number and parse what is left.
// Empty or unparseable text counts as zero stock.
func parseStock(text string) int {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0
	}
	if n, err := strconv.Atoi(cleaned); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return int(f)
	}
	return 0
}
