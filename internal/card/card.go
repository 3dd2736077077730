package card

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status selects the template and the coin layout of a card
type Status string

const (
	StatusOne   Status = "STATUS_1"
	StatusTwo   Status = "STATUS_2"
	StatusThree Status = "STATUS_3"
)

// Statuses lists the known statuses in order. The first one is the fallback.
var Statuses = []Status{StatusOne, StatusTwo, StatusThree}

// Known reports whether s is one of the enumerated statuses
func (s Status) Known() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts any JSON scalar as a status
func (s *Status) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Status(t)
	return nil
}

// Card represents one card record as served by the cards endpoint
type Card struct {
	Status    Status `json:"status"`
	ImageURL  Text   `json:"url"`
	Chain     Text   `json:"CARD_CHAIN"`
	Name      Text   `json:"CARD_NAME"`
	Theme     Text   `json:"CARD_THEME"`
	Type      Text   `json:"CARD_TYPE"`
	Coins     Coins  `json:"CARD_COINS"`
	USDAmount Text   `json:"USD_AMMOUNT"`
	ID        Text   `json:"CARD_ID"`
	PackID    Text   `json:"PACK_ID"`
	Date      Text   `json:"CARD_DATE"`
}

// ParseError is returned when a payload is not a JSON array of card records
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid card payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode parses a cards payload. Field shapes are never rejected, only
// malformed JSON or a top level that is not an array. Elements that are not
// objects decode to an empty card.
func Decode(data []byte) ([]Card, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ParseError{Err: fmt.Errorf("expected a JSON array")}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &ParseError{Err: err}
	}

	cards := make([]Card, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		if err := json.Unmarshal(item, &cards[i]); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("card %d: %w", i, err)}
		}
	}
	return cards, nil
}

// Find returns the first card with the given identifier
func Find(cards []Card, id string) (*Card, bool) {
	for i := range cards {
		if string(cards[i].ID) == id {
			return &cards[i], true
		}
	}
	return nil, false
}

// Text is a display value decoded from any JSON value.
// Strings are kept verbatim, numbers keep their literal text and null is empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text(scalarText(data))
	return nil
}

func (t Text) String() string {
	return string(t)
}

func scalarText(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// Coins holds the coin amount, which the server sends either as a list of
// tokens or as one comma separated string.
type Coins struct {
	list   []string
	raw    string
	isList bool
	set    bool
	// other JSON values are displayed but have no tokens
	opaque bool
}

// CoinsFromString builds a comma separated coin value
func CoinsFromString(raw string) Coins {
	return Coins{raw: raw, set: true}
}

// CoinsFromList builds a list coin value
func CoinsFromList(tokens ...string) Coins {
	return Coins{list: append([]string(nil), tokens...), isList: true, set: true}
}

// Tokens returns the individual coins. Lists are used as-is, strings are
// split on commas and trimmed. A missing value, a number, a boolean or an
// object has no tokens.
func (c Coins) Tokens() []string {
	if !c.set || c.opaque {
		return nil
	}
	if c.isList {
		return append([]string(nil), c.list...)
	}

	parts := strings.Split(c.raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// String returns the plain text form of the coin value
func (c Coins) String() string {
	if c.isList {
		return strings.Join(c.list, ",")
	}
	return c.raw
}

// IsList reports whether the server sent the coins as a list
func (c Coins) IsList() bool {
	return c.isList
}

func (c *Coins) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Coins{}
		return nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		tokens := make([]string, 0, len(items))
		for _, item := range items {
			tokens = append(tokens, scalarText(item))
		}
		*c = Coins{list: tokens, isList: true, set: true}
		return nil
	}

	if trimmed[0] != '"' {
		*c = Coins{raw: scalarText(trimmed), set: true, opaque: true}
		return nil
	}

	*c = CoinsFromString(scalarText(trimmed))
	return nil
}

func (c Coins) MarshalJSON() ([]byte, error) {
	switch {
	case !c.set:
		return []byte("null"), nil
	case c.isList:
		return json.Marshal(c.list)
	case c.opaque:
		return []byte(c.raw), nil
	default:
		return json.Marshal(c.raw)
	}
}
