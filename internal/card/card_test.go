package card

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FieldNames(t *testing.T) {
	payload := `[{
		"status": "STATUS_2",
		"url": "/card_image/C-1.png",
		"CARD_CHAIN": "Ethereum",
		"CARD_NAME": "Orion",
		"CARD_THEME": "Space",
		"CARD_TYPE": "Monster",
		"CARD_COINS": "BTC, ETH",
		"USD_AMMOUNT": 42.5,
		"CARD_ID": "C-1",
		"PACK_ID": "P-9",
		"CARD_DATE": "2024-05-01"
	}]`

	cards, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, cards, 1)

	c := cards[0]
	assert.Equal(t, StatusTwo, c.Status)
	assert.Equal(t, Text("/card_image/C-1.png"), c.ImageURL)
	assert.Equal(t, Text("Ethereum"), c.Chain)
	assert.Equal(t, Text("Orion"), c.Name)
	assert.Equal(t, Text("42.5"), c.USDAmount)
	assert.Equal(t, Text("C-1"), c.ID)
	assert.Equal(t, Text("P-9"), c.PackID)
	assert.Equal(t, "BTC, ETH", c.Coins.String())
}

func TestDecode_ToleratesFieldShapes(t *testing.T) {
	payload := `[{"status": 1, "CARD_NAME": null, "CARD_TYPE": true, "PACK_ID": {"a": 1}}]`

	cards, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, cards, 1)

	assert.Equal(t, Status("1"), cards[0].Status)
	assert.False(t, cards[0].Status.Known())
	assert.Equal(t, Text(""), cards[0].Name)
	assert.Equal(t, Text("true"), cards[0].Type)
	assert.Equal(t, Text(`{"a":1}`), cards[0].PackID)
	assert.Nil(t, cards[0].Coins.Tokens())
}

func TestDecode_ToleratesNonObjectElements(t *testing.T) {
	cards, err := Decode([]byte(`[1, "x", true, null, {"status":"STATUS_2","CARD_ID":"a"}]`))
	require.NoError(t, err)
	require.Len(t, cards, 5)

	for i, c := range cards[:4] {
		if diff := cmp.Diff(Card{}, c, cmp.AllowUnexported(Coins{})); diff != "" {
			t.Errorf("element %d should decode to an empty card (-want +got):\n%s", i, diff)
		}
	}
	assert.Equal(t, StatusTwo, cards[4].Status)
	assert.Equal(t, Text("a"), cards[4].ID)
}

func TestCoins_NonStringScalarsHaveNoTokens(t *testing.T) {
	cards, err := Decode([]byte(`[
		{"status": "STATUS_1", "CARD_COINS": 5},
		{"status": "STATUS_1", "CARD_COINS": false},
		{"status": "STATUS_1", "CARD_COINS": {"BTC": 1}}
	]`))
	require.NoError(t, err)
	require.Len(t, cards, 3)

	for i, c := range cards {
		assert.Nil(t, c.Coins.Tokens(), "card %d", i)
	}
	assert.Equal(t, "5", cards[0].Coins.String())
	assert.Equal(t, `{"BTC":1}`, cards[2].Coins.String())

	out, err := cards[0].Coins.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "5", string(out))
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "<html>oops</html>"},
		{name: "truncated", payload: `[{"status": "STATUS_1"`},
		{name: "object", payload: `{"error": "Unauthorized"}`},
		{name: "null", payload: "null"},
		{name: "empty", payload: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestCoins_StringAndListAgree(t *testing.T) {
	cards, err := Decode([]byte(`[
		{"status": "STATUS_1", "CARD_COINS": "1,2,3"},
		{"status": "STATUS_1", "CARD_COINS": ["1","2","3"]},
		{"status": "STATUS_1", "CARD_COINS": [1, 2, 3]}
	]`))
	require.NoError(t, err)

	want := []string{"1", "2", "3"}
	for i, c := range cards {
		if diff := cmp.Diff(want, c.Coins.Tokens()); diff != "" {
			t.Errorf("card %d tokens mismatch (-want +got):\n%s", i, diff)
		}
	}

	assert.False(t, cards[0].Coins.IsList())
	assert.True(t, cards[1].Coins.IsList())
	assert.Equal(t, "1,2,3", cards[1].Coins.String())
}

func TestCoins_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		coins Coins
		want  []string
	}{
		{name: "trimmed", coins: CoinsFromString(" BTC , ETH ,SOL"), want: []string{"BTC", "ETH", "SOL"}},
		{name: "empty string", coins: CoinsFromString(""), want: []string{""}},
		{name: "list kept as-is", coins: CoinsFromList(" BTC", "ETH "), want: []string{" BTC", "ETH "}},
		{name: "missing", coins: Coins{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coins.Tokens())
		})
	}
}

func TestFind(t *testing.T) {
	cards := []Card{{ID: "A"}, {ID: "B", Name: "second"}}

	c, ok := Find(cards, "B")
	require.True(t, ok)
	assert.Equal(t, Text("second"), c.Name)

	_, ok = Find(cards, "Z")
	assert.False(t, ok)
}
