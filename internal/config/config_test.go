package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONDAY_API_KEY", "key")
	t.Setenv("MONDAY_USER_BOARD_ID", "100")
	t.Setenv("MONDAY_USER_BOARD_USER_ID_COLUMN_ID", "text")
	t.Setenv("MONDAY_CLAIMS_BOARD_ID", "200")
	t.Setenv("MONDAY_CLAIMS_BOARD_USER_ID_COLUMN_ID", "text")
	t.Setenv("MONDAY_CLAIMS_BOARD_GIFT_COLUMN_ID", "text1")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://api.monday.com/v2", cfg.APIURL)
	assert.Equal(t, "data/gifts.yaml", cfg.CatalogPath)
	assert.False(t, cfg.WatchCatalog)
	assert.Equal(t, 7, cfg.Retry.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Jitter)
	assert.Equal(t, 8*time.Second, cfg.Retry.Timeout)
	assert.False(t, cfg.Survey.Configured())
	assert.False(t, cfg.Inventory.Configured())
}

func TestLoad_FullEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MONDAY_SURVEY_BOARD_ID", "300")
	t.Setenv("MONDAY_SURVEY_BOARD_USER_ID_COLUMN_ID", "text")
	t.Setenv("MONDAY_INVENTORY_BOARD_ID", "400")
	t.Setenv("MONDAY_INVENTORY_BOARD_GIFT_ID_COLUMN_ID", "text")
	t.Setenv("MONDAY_INVENTORY_BOARD_STOCK_COLUMN_ID", "numbers")
	t.Setenv("MONDAY_RETRIES", "3")
	t.Setenv("MONDAY_MIN_DELAY_MS", "100")
	t.Setenv("CATALOG_WATCH", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Survey.Configured())
	assert.True(t, cfg.Inventory.Configured())
	assert.Equal(t, 3, cfg.Retry.Retries)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.MinDelay)
	assert.True(t, cfg.WatchCatalog)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setRequired(t)
	t.Setenv("MONDAY_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONDAY_API_KEY")
}

func TestLoad_MissingClaimsColumns(t *testing.T) {
	setRequired(t)
	t.Setenv("MONDAY_CLAIMS_BOARD_GIFT_COLUMN_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PartialInventoryBoard(t *testing.T) {
	setRequired(t)
	t.Setenv("MONDAY_INVENTORY_BOARD_ID", "400")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory")
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("MONDAY_RETRIES", "lots")
	t.Setenv("MONDAY_MIN_DELAY_MS", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retry.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.MinDelay)
}
