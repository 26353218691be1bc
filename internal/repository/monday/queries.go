package monday

import (
	"context"
	"encoding/json"
	"fmt"
)

// GraphQL documents for the handful of board operations this app uses.
// Column values always come back as {id, text} pairs — text is the
// display form, which is the only representation the API renders
// consistently across column types.
const (
	itemsPageQuery = `query ($boardId: ID!, $limit: Int!, $cursor: String, $columnIds: [String!]) {
  boards(ids: [$boardId]) {
    items_page(limit: $limit, cursor: $cursor) {
      cursor
      items {
        id
        name
        column_values(ids: $columnIds) { id text }
      }
    }
  }
}`

	itemsByColumnQuery = `query ($boardId: ID!, $columnId: String!, $value: String!, $limit: Int!) {
  items_page_by_column_values(
    board_id: $boardId
    limit: $limit
    columns: [{column_id: $columnId, column_values: [$value]}]
  ) {
    items { id name }
  }
}`

	itemByIDQuery = `query ($itemId: [ID!], $columnIds: [String!]) {
  items(ids: $itemId) {
    id
    name
    column_values(ids: $columnIds) { id text }
  }
}`

	createItemMutation = `mutation ($boardId: ID!, $itemName: String!, $columnValues: JSON!) {
  create_item(board_id: $boardId, item_name: $itemName, column_values: $columnValues) { id }
}`

	changeSimpleValueMutation = `mutation ($boardId: ID!, $itemId: ID!, $columnId: String!, $value: String!) {
  change_simple_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
}`

	changeValueMutation = `mutation ($boardId: ID!, $itemId: ID!, $columnId: String!, $value: JSON!) {
  change_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
}`

	changeMultipleValuesMutation = `mutation ($boardId: ID!, $itemId: ID!, $columnValues: JSON!) {
  change_multiple_column_values(board_id: $boardId, item_id: $itemId, column_values: $columnValues) { id }
}`

	deleteItemMutation = `mutation ($itemId: ID!) {
  delete_item(item_id: $itemId) { id }
}`

	archiveItemMutation = `mutation ($itemId: ID!) {
  archive_item(item_id: $itemId) { id }
}`
)

// Item is a board row with the column subset a query asked for.
type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []ColumnValue `json:"column_values"`
}

type ColumnValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Text returns the display text of the given column, or "" if the column
// was not part of the query result.
func (it Item) Text(columnID string) string {
	for _, cv := range it.ColumnValues {
		if cv.ID == columnID {
			return cv.Text
		}
	}
	return ""
}

// ItemsPage is one page of a cursor-paginated board listing. An empty
// Cursor means the listing is exhausted.
type ItemsPage struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"items"`
}

// ItemsPage lists one page of board rows. Pass cursor="" for the first page
// and the returned cursor for subsequent ones.
func (c *Client) ItemsPage(ctx context.Context, boardID string, columnIDs []string, cursor string, limit int) (*ItemsPage, error) {
	vars := map[string]any{
		"boardId":   boardID,
		"limit":     limit,
		"columnIds": columnIDs,
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	data, err := c.Request(ctx, itemsPageQuery, vars)
	if err != nil {
		return nil, err
	}

	var out struct {
		Boards []struct {
			ItemsPage ItemsPage `json:"items_page"`
		} `json:"boards"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("monday: decoding items page: %w", err)
	}
	if len(out.Boards) == 0 {
		return nil, fmt.Errorf("monday: board %s not found", boardID)
	}
	return &out.Boards[0].ItemsPage, nil
}

// ItemsByColumnValue runs a server-side exact-match query: rows whose
// column equals value. This avoids a full scan but gives no cursor, so it
// is only used where a bounded result set is enough.
func (c *Client) ItemsByColumnValue(ctx context.Context, boardID, columnID, value string, limit int) ([]Item, error) {
	data, err := c.Request(ctx, itemsByColumnQuery, map[string]any{
		"boardId":  boardID,
		"columnId": columnID,
		"value":    value,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Page struct {
			Items []Item `json:"items"`
		} `json:"items_page_by_column_values"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("monday: decoding column query: %w", err)
	}
	return out.Page.Items, nil
}

// ItemByID fetches a single row with the given columns. Returns nil if the
// row no longer exists.
func (c *Client) ItemByID(ctx context.Context, itemID string, columnIDs []string) (*Item, error) {
	data, err := c.Request(ctx, itemByIDQuery, map[string]any{
		"itemId":    []string{itemID},
		"columnIds": columnIDs,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("monday: decoding item: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return &out.Items[0], nil
}

// CreateItem creates a row. columnValues maps column id to display value;
// the API wants it as a JSON-encoded string, not a nested object.
func (c *Client) CreateItem(ctx context.Context, boardID, itemName string, columnValues map[string]string) (string, error) {
	encoded, err := json.Marshal(columnValues)
	if err != nil {
		return "", fmt.Errorf("monday: encoding column values: %w", err)
	}

	data, err := c.Request(ctx, createItemMutation, map[string]any{
		"boardId":      boardID,
		"itemName":     itemName,
		"columnValues": string(encoded),
	})
	if err != nil {
		return "", err
	}

	var out struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("monday: decoding create_item: %w", err)
	}
	return out.CreateItem.ID, nil
}

// The three column-update mutation shapes. The API's acceptance of each
// varies by column type and has changed over time, so callers probe them
// in order rather than relying on any single one.

func (c *Client) ChangeSimpleColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	_, err := c.Request(ctx, changeSimpleValueMutation, map[string]any{
		"boardId":  boardID,
		"itemId":   itemID,
		"columnId": columnID,
		"value":    value,
	})
	return err
}

func (c *Client) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("monday: encoding column value: %w", err)
	}
	_, err = c.Request(ctx, changeValueMutation, map[string]any{
		"boardId":  boardID,
		"itemId":   itemID,
		"columnId": columnID,
		"value":    string(encoded),
	})
	return err
}

func (c *Client) ChangeMultipleColumnValues(ctx context.Context, boardID, itemID string, columnValues map[string]string) error {
	encoded, err := json.Marshal(columnValues)
	if err != nil {
		return fmt.Errorf("monday: encoding column values: %w", err)
	}
	_, err = c.Request(ctx, changeMultipleValuesMutation, map[string]any{
		"boardId":      boardID,
		"itemId":       itemID,
		"columnValues": string(encoded),
	})
	return err
}

func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	_, err := c.Request(ctx, deleteItemMutation, map[string]any{"itemId": itemID})
	return err
}

func (c *Client) ArchiveItem(ctx context.Context, itemID string) error {
	_, err := c.Request(ctx, archiveItemMutation, map[string]any{"itemId": itemID})
	return err
}
