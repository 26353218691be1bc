package monday

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default scan bounds. The API caps pages at 500 rows; 25 pages covers
// 12,500 rows, well past the size of any eligibility list this app serves.
const (
	defaultPageSize = 500
	defaultMaxPages = 25
	defaultCacheTTL = 5 * time.Minute
)

// Clock is injectable time, so cache expiry is testable.
type Clock func() time.Time

// existsCache is a bounded-lifetime memo of existence answers, keyed by
// (board, column, value). Entries are independent and staleness is bounded
// by the TTL, so a single mutex is all the coordination it needs.
type existsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	exists  bool
	expires time.Time
}

func newExistsCache(ttl time.Duration, now Clock) *existsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &existsCache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

func (c *existsCache) get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, key)
		return false, false
	}
	return e.exists, true
}

func (c *existsCache) put(key string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{exists: exists, expires: c.now().Add(c.ttl)}
}

// Lookup answers "does a row with column == value exist on this board".
//
// The fast path is a server-side exact-match query; if that call fails for
// any reason the lookup falls back to a paginated scan, short-circuiting on
// the first match. Only when both paths fail does the caller see an error —
// and that error means "verification unavailable", never "not found".
//
// A Lookup built with NewLookup has no cache at all. That is deliberate:
// the claims board must always be read fresh (a stale positive would let a
// second claim through), and the safest way to enforce that is for the
// claims-board caller to hold a Lookup that cannot cache. Stable boards
// (the user list, survey responses) use NewCachedLookup.
type Lookup struct {
	client   *Client
	boardID  string
	columnID string
	cache    *existsCache // nil = never cache
	pageSize int
	maxPages int
	logger   *slog.Logger
}

func NewLookup(client *Client, boardID, columnID string, logger *slog.Logger) *Lookup {
	return &Lookup{
		client:   client,
		boardID:  boardID,
		columnID: columnID,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		logger:   logger,
	}
}

func NewCachedLookup(client *Client, boardID, columnID string, ttl time.Duration, now Clock, logger *slog.Logger) *Lookup {
	l := NewLookup(client, boardID, columnID, logger)
	l.cache = newExistsCache(ttl, now)
	return l
}

func (l *Lookup) Exists(ctx context.Context, value string) (bool, error) {
	key := l.boardID + "\x00" + l.columnID + "\x00" + value
	if l.cache != nil {
		if exists, ok := l.cache.get(key); ok {
			return exists, nil
		}
	}

	exists, err := l.existsByQuery(ctx, value)
	if err != nil {
		l.logger.Warn("exact-match lookup failed, falling back to scan",
			slog.String("board", l.boardID),
			slog.String("error", err.Error()),
		)
		exists, err = l.existsByScan(ctx, value)
		if err != nil {
			return false, err
		}
	}

	if l.cache != nil {
		l.cache.put(key, exists)
	}
	return exists, nil
}

func (l *Lookup) existsByQuery(ctx context.Context, value string) (bool, error) {
	items, err := l.client.ItemsByColumnValue(ctx, l.boardID, l.columnID, value, 1)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (l *Lookup) existsByScan(ctx context.Context, value string) (bool, error) {
	cursor := ""
	for page := 0; page < l.maxPages; page++ {
		p, err := l.client.ItemsPage(ctx, l.boardID, []string{l.columnID}, cursor, l.pageSize)
		if err != nil {
			return false, err
		}
		for _, item := range p.Items {
			if item.Text(l.columnID) == value {
				return true, nil
			}
		}
		if p.Cursor == "" {
			return false, nil
		}
		cursor = p.Cursor
	}
	// Cursor chain outlived the page cap. Treat as not found rather than
	// erroring; boards this large are outside the scan's design envelope.
	l.logger.Warn("board scan hit page cap without a match",
		slog.String("board", l.boardID),
		slog.Int("pages", l.maxPages),
	)
	return false, nil
}

// MembershipBoard adapts a cached Lookup to the repository.Membership
// interface, for eligibility boards.
type MembershipBoard struct {
	name   string
	lookup *Lookup
}

func NewMembershipBoard(name string, lookup *Lookup) *MembershipBoard {
	return &MembershipBoard{name: name, lookup: lookup}
}

func (m *MembershipBoard) Name() string { return m.name }

func (m *MembershipBoard) Contains(ctx context.Context, userID string) (bool, error) {
	return m.lookup.Exists(ctx, userID)
}

// UserDirectory resolves display names from the user board. It is used
// advisorily — a claim is still written if the name cannot be found.
type UserDirectory struct {
	client    *Client
	boardID   string
	userIDCol string
	nameCol   string
}

func NewUserDirectory(client *Client, boardID, userIDCol, nameCol string) *UserDirectory {
	return &UserDirectory{client: client, boardID: boardID, userIDCol: userIDCol, nameCol: nameCol}
}

// DisplayName returns the user's display name, preferring the dedicated
// name column and falling back to the row's item name. Returns "" without
// error when the user simply has no row.
func (d *UserDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	cols := []string{d.userIDCol}
	if d.nameCol != "" {
		cols = append(cols, d.nameCol)
	}
	items, err := d.client.ItemsByColumnValue(ctx, d.boardID, d.userIDCol, userID, 1)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	if d.nameCol != "" {
		item, err := d.client.ItemByID(ctx, items[0].ID, cols)
		if err == nil && item != nil {
			if name := item.Text(d.nameCol); name != "" {
				return name, nil
			}
		}
	}
	return items[0].Name, nil
}
