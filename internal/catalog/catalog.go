// Package catalog loads the static gift catalog from a YAML file.
//
// The catalog is the one piece of data this app owns locally: ids, titles
// and presentation fields for the gifts on offer, plus a starting stock
// used only when no live inventory board is configured. A reload swaps the
// whole snapshot under a write lock, so readers always see a consistent
// catalog.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/talmor/giftdesk/internal/model"
)

type file struct {
	Gifts []model.Gift `yaml:"gifts"`
}

type Catalog struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	gifts []model.Gift
	byID  map[string]model.Gift

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Load reads and validates the catalog file.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{path: path, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file and swaps the snapshot in. On any error the
// previous snapshot stays in place.
func (c *Catalog) Reload() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", c.path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("catalog: parsing %s: %w", c.path, err)
	}
	if len(f.Gifts) == 0 {
		return fmt.Errorf("catalog: %s defines no gifts", c.path)
	}

	byID := make(map[string]model.Gift, len(f.Gifts))
	for _, g := range f.Gifts {
		if g.ID == "" || g.Title == "" {
			return fmt.Errorf("catalog: gift entries need both id and title (got id=%q title=%q)", g.ID, g.Title)
		}
		if _, dup := byID[g.ID]; dup {
			return fmt.Errorf("catalog: duplicate gift id %q", g.ID)
		}
		byID[g.ID] = g
	}

	c.mu.Lock()
	c.gifts = f.Gifts
	c.byID = byID
	c.mu.Unlock()

	c.logger.Info("catalog loaded", slog.String("path", c.path), slog.Int("gifts", len(f.Gifts)))
	return nil
}

// Gifts returns the catalog entries in file order.
func (c *Catalog) Gifts() []model.Gift {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Gift, len(c.gifts))
	copy(out, c.gifts)
	return out
}

func (c *Catalog) Get(id string) (model.Gift, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.byID[id]
	return g, ok
}

// Watch reloads the catalog when the file changes, so gifts can be edited
// without a restart. A bad edit is logged and the old snapshot kept.
func (c *Catalog) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: starting watcher: %w", err)
	}
	if err := w.Add(c.path); err != nil {
		w.Close()
		return fmt.Errorf("catalog: watching %s: %w", c.path, err)
	}
	c.watcher = w
	c.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.Reload(); err != nil {
					c.logger.Error("catalog reload failed, keeping previous version",
						slog.String("error", err.Error()),
					)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.logger.Error("catalog watcher error", slog.String("error", err.Error()))
			case <-c.done:
				return
			}
		}
	}()

	return nil
}

func (c *Catalog) Close() {
	if c.watcher != nil {
		close(c.done)
		c.watcher.Close()
		c.watcher = nil
	}
}
