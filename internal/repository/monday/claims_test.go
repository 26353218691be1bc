package monday

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talmor/giftdesk/internal/model"
)

func TestClaimsBoard_CreateWithDisplayName(t *testing.T) {
	var gotName string
	var gotValues map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		require.Contains(t, req.Query, "create_item")
		gotName, _ = req.Variables["itemName"].(string)
		raw, _ := req.Variables["columnValues"].(string)
		json.Unmarshal([]byte(raw), &gotValues)
		writeData(w, `{"create_item":{"id":"777"}}`)
	}))
	defer srv.Close()

	cb := NewClaimsBoard(NewClient(testConfig(srv.URL), testLogger()), "b1", "id_col", "gift_col", "name_col", testLogger())
	id, err := cb.Create(context.Background(), &model.Claim{
		UserID:      "111222333",
		GiftID:      "coffee-kit",
		GiftTitle:   "Coffee Kit",
		DisplayName: "Dana Levi",
	})

	require.NoError(t, err)
	assert.Equal(t, "777", id)
	assert.Equal(t, "Dana Levi", gotName)
	assert.Equal(t, map[string]string{
		"id_col":   "111222333",
		"gift_col": "Coffee Kit",
		"name_col": "Dana Levi",
	}, gotValues)
}

func TestClaimsBoard_CreateFallsBackToUserID(t *testing.T) {
	var gotName string
	var gotValues map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotName, _ = req.Variables["itemName"].(string)
		raw, _ := req.Variables["columnValues"].(string)
		json.Unmarshal([]byte(raw), &gotValues)
		writeData(w, `{"create_item":{"id":"778"}}`)
	}))
	defer srv.Close()

	cb := NewClaimsBoard(NewClient(testConfig(srv.URL), testLogger()), "b1", "id_col", "gift_col", "name_col", testLogger())
	_, err := cb.Create(context.Background(), &model.Claim{
		UserID:    "111222333",
		GiftID:    "coffee-kit",
		GiftTitle: "Coffee Kit",
	})

	require.NoError(t, err)
	assert.Equal(t, "111222333", gotName)
	assert.NotContains(t, gotValues, "name_col")
}

func TestClaimsBoard_CountByGiftTitleAcrossPages(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		row := func(title string) string {
			return `{"id":"1","name":"row","column_values":[{"id":"gift_col","text":"` + title + `"}]}`
		}
		if page == 1 {
			writeData(w, `{"boards":[{"items_page":{"cursor":"next","items":[`+
				row("Coffee Kit")+`,`+row("Tote Bag")+`]}}]}`)
			return
		}
		writeData(w, `{"boards":[{"items_page":{"cursor":"","items":[`+row("Coffee Kit")+`]}}]}`)
	}))
	defer srv.Close()

	cb := NewClaimsBoard(NewClient(testConfig(srv.URL), testLogger()), "b1", "id_col", "gift_col", "", testLogger())
	count, err := cb.CountByGiftTitle(context.Background(), "Coffee Kit")

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, page)
}

func TestClaimsBoard_HasClaimNeverCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.Query, "items_page_by_column_values") {
			writeGQLError(w, "unhandled query")
			return
		}
		calls.Add(1)
		writeData(w, `{"items_page_by_column_values":{"items":[]}}`)
	}))
	defer srv.Close()

	cb := NewClaimsBoard(NewClient(testConfig(srv.URL), testLogger()), "b1", "id_col", "gift_col", "", testLogger())
	for i := 0; i < 3; i++ {
		claimed, err := cb.HasClaim(context.Background(), "111222333")
		require.NoError(t, err)
		assert.False(t, claimed)
	}
	assert.Equal(t, int32(3), calls.Load(), "every duplicate check must hit the board")
}
