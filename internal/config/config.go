// Package config collects the application's environment configuration.
//
// Every external dependency of the app is a monday.com board, and each board
// needs an id plus the ids of the columns we read or write. With three or
// four boards in play that is too many values to read ad hoc in main, so
// they are gathered here in one struct with one Load function.
//
// Variable names follow the MONDAY_<BOARD>_* convention used by the
// operational tooling, so the server and boardctl share an environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Board identifies one monday.com board and the columns this app touches
// on it. Column ids are monday's short text ids (e.g. "text", "text1"),
// not display names.
type Board struct {
	ID           string
	UserIDCol    string // column holding the external user id
	UserNameCol  string // optional: column holding a display name
	GiftTitleCol string // claims board: column holding the claimed gift title
	GiftIDCol    string // inventory board: column holding the logical gift id
	StockCol     string // inventory board: numeric remaining-stock column
}

// Configured reports whether the board is set up at all. Optional boards
// (inventory, survey) are simply absent from the environment.
func (b Board) Configured() bool { return b.ID != "" }

// Retry tunes the transport client's backoff loop.
type Retry struct {
	Retries  int           // retries after the first attempt
	MinDelay time.Duration
	MaxDelay time.Duration
	Jitter   time.Duration
	Timeout  time.Duration // per-attempt timeout
}

type Config struct {
	Port        int
	APIKey      string
	APIURL      string
	CatalogPath string
	WatchCatalog bool
	JWTSecret   string

	Users     Board // eligibility: the national-id list
	Survey    Board // optional second eligibility board
	Claims    Board
	Inventory Board // optional live stock board

	Retry Retry
}

// Load reads configuration from the environment. Only the API key and the
// user and claims boards are mandatory; everything else has a default or is
// optional.
func Load() (Config, error) {
	cfg := Config{
		Port:         envInt("PORT", 8080),
		APIKey:       os.Getenv("MONDAY_API_KEY"),
		APIURL:       envStr("MONDAY_API_URL", "https://api.monday.com/v2"),
		CatalogPath:  envStr("CATALOG_PATH", "data/gifts.yaml"),
		WatchCatalog: os.Getenv("CATALOG_WATCH") == "true",
		JWTSecret:    os.Getenv("JWT_SECRET"),
		Users: Board{
			ID:          os.Getenv("MONDAY_USER_BOARD_ID"),
			UserIDCol:   os.Getenv("MONDAY_USER_BOARD_USER_ID_COLUMN_ID"),
			UserNameCol: os.Getenv("MONDAY_USER_BOARD_USER_NAME_COLUMN_ID"),
		},
		Survey: Board{
			ID:        os.Getenv("MONDAY_SURVEY_BOARD_ID"),
			UserIDCol: os.Getenv("MONDAY_SURVEY_BOARD_USER_ID_COLUMN_ID"),
		},
		Claims: Board{
			ID:           os.Getenv("MONDAY_CLAIMS_BOARD_ID"),
			UserIDCol:    os.Getenv("MONDAY_CLAIMS_BOARD_USER_ID_COLUMN_ID"),
			UserNameCol:  os.Getenv("MONDAY_CLAIMS_BOARD_USER_NAME_COLUMN_ID"),
			GiftTitleCol: os.Getenv("MONDAY_CLAIMS_BOARD_GIFT_COLUMN_ID"),
		},
		Inventory: Board{
			ID:        os.Getenv("MONDAY_INVENTORY_BOARD_ID"),
			GiftIDCol: os.Getenv("MONDAY_INVENTORY_BOARD_GIFT_ID_COLUMN_ID"),
			StockCol:  os.Getenv("MONDAY_INVENTORY_BOARD_STOCK_COLUMN_ID"),
		},
		Retry: Retry{
			Retries:  envInt("MONDAY_RETRIES", 7),
			MinDelay: envMillis("MONDAY_MIN_DELAY_MS", 250*time.Millisecond),
			MaxDelay: envMillis("MONDAY_MAX_DELAY_MS", 5*time.Second),
			Jitter:   envMillis("MONDAY_JITTER_MS", 250*time.Millisecond),
			Timeout:  envMillis("MONDAY_TIMEOUT_MS", 8*time.Second),
		},
	}

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("config: MONDAY_API_KEY is required")
	}
	if !cfg.Users.Configured() || cfg.Users.UserIDCol == "" {
		return Config{}, fmt.Errorf("config: MONDAY_USER_BOARD_ID and its user-id column are required")
	}
	if !cfg.Claims.Configured() || cfg.Claims.UserIDCol == "" || cfg.Claims.GiftTitleCol == "" {
		return Config{}, fmt.Errorf("config: MONDAY_CLAIMS_BOARD_ID and its user-id and gift columns are required")
	}
	if cfg.Inventory.Configured() && (cfg.Inventory.GiftIDCol == "" || cfg.Inventory.StockCol == "") {
		return Config{}, fmt.Errorf("config: inventory board is set but its gift-id or stock column is missing")
	}
	if cfg.Survey.Configured() && cfg.Survey.UserIDCol == "" {
		return Config{}, fmt.Errorf("config: survey board is set but its user-id column is missing")
	}

	return cfg, nil
}

func envStr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envMillis(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
