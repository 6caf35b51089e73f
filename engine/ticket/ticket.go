// Package ticket defines the support-ticket domain types and the
// ticket-history data contract shared by ingestion and retrieval.
package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Ticket is a historical support interaction. Tickets are immutable once
// indexed; there is no update or delete path.
type Ticket struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts both string and integer ids, since upstream ticket
// sources disagree on the type.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Text string          `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Text = raw.Text
	if len(raw.ID) == 0 {
		t.ID = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ID, &s); err == nil {
		t.ID = s
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw.ID, &n); err == nil {
		t.ID = strconv.FormatInt(n, 10)
		return nil
	}
	return fmt.Errorf("ticket: id must be string or integer, got %s", raw.ID)
}

// Validate checks a ticket before ingestion.
func Validate(t Ticket) error {
	if t.ID == "" {
		return fmt.Errorf("validate: id is empty")
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("validate: ticket %s: text is empty", t.ID)
	}
	return nil
}

// ReadHistory decodes a ticket-history payload: either a single JSON array
// of tickets or a stream of JSON objects, one per ticket.
func ReadHistory(data []byte) ([]Ticket, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var tickets []Ticket
		if err := json.Unmarshal(trimmed, &tickets); err != nil {
			return nil, fmt.Errorf("ticket: decode history array: %w", err)
		}
		return tickets, nil
	}

	var tickets []Ticket
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var t Ticket
		if err := dec.Decode(&t); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("ticket: decode record %d: %w", len(tickets), err)
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}
