package monday

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger discards everything below Error so test output stays readable.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testConfig returns a client config with millisecond backoff so retry
// tests finish quickly.
func testConfig(url string) Config {
	return Config{
		URL:      url,
		APIKey:   "test-key",
		Retries:  3,
		MinDelay: time.Millisecond,
		MaxDelay: 20 * time.Millisecond,
		Jitter:   time.Millisecond,
		Timeout:  2 * time.Second,
	}
}

// gqlRequest is the decoded body of a request the fake API received.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"data":` + data + `}`))
}

func writeGQLError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"errors":[{"message":` + strconv.Quote(message) + `}]}`))
}

// fakeBoard emulates just enough of the board API for the lookup and
// inventory code: one board, one row, a stock column, and per-mutation
// switches controlling whether a write actually sticks — which is how the
// real API misbehaves.
type fakeBoard struct {
	mu sync.Mutex

	itemID    string
	itemName  string
	giftID    string
	giftIDCol string
	stockCol  string
	stock     int

	// which mutation shapes actually persist their write
	applySimple bool
	applyJSON   bool
	applyMulti  bool

	requests int // total requests seen
	srv      *httptest.Server
}

func newFakeBoard(t *testing.T) *fakeBoard {
	fb := &fakeBoard{
		itemID:      "9001",
		itemName:    "Coffee Kit",
		giftID:      "coffee-kit",
		giftIDCol:   "text",
		stockCol:    "numbers",
		stock:       5,
		applySimple: true,
		applyJSON:   true,
		applyMulti:  true,
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.handle))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBoard) client() *Client {
	return NewClient(testConfig(fb.srv.URL), testLogger())
}

func (fb *fakeBoard) requestCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.requests
}

func (fb *fakeBoard) currentStock() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.stock
}

func (fb *fakeBoard) itemJSON() string {
	return `{"id":"` + fb.itemID + `","name":"` + fb.itemName + `","column_values":[` +
		`{"id":"` + fb.giftIDCol + `","text":"` + fb.giftID + `"},` +
		`{"id":"` + fb.stockCol + `","text":"` + strconv.Itoa(fb.stock) + `"}]}`
}

func (fb *fakeBoard) handle(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.requests++

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := req.Query

	switch {
	case strings.Contains(q, "items_page_by_column_values"):
		writeData(w, `{"items_page_by_column_values":{"items":[`+fb.itemJSON()+`]}}`)

	case strings.Contains(q, "items_page"):
		writeData(w, `{"boards":[{"items_page":{"cursor":"","items":[`+fb.itemJSON()+`]}}]}`)

	case strings.Contains(q, "items(ids"):
		writeData(w, `{"items":[`+fb.itemJSON()+`]}`)

	case strings.Contains(q, "change_simple_column_value"):
		if fb.applySimple {
			fb.stock = mustAtoi(req.Variables["value"].(string))
		}
		writeData(w, `{"change_simple_column_value":{"id":"`+fb.itemID+`"}}`)

	case strings.Contains(q, "change_multiple_column_values"):
		if fb.applyMulti {
			var values map[string]string
			json.Unmarshal([]byte(req.Variables["columnValues"].(string)), &values)
			fb.stock = mustAtoi(values[fb.stockCol])
		}
		writeData(w, `{"change_multiple_column_values":{"id":"`+fb.itemID+`"}}`)

	case strings.Contains(q, "change_column_value"):
		if fb.applyJSON {
			var value string
			json.Unmarshal([]byte(req.Variables["value"].(string)), &value)
			fb.stock = mustAtoi(value)
		}
		writeData(w, `{"change_column_value":{"id":"`+fb.itemID+`"}}`)

	default:
		writeGQLError(w, "unhandled query in fake board")
	}
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
