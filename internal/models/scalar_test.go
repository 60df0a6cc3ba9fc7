package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityDecoding(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		value float64
		valid bool
	}{
		{"number", `3`, 3, true},
		{"float", `2.5`, 2.5, true},
		{"numeric string", `"3"`, 3, true},
		{"numeric string with spaces", `" 4 "`, 4, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"word", `"three"`, 0, false},
		{"object", `{"n": 1}`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tc.in), &q)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, q.Valid)
			assert.Equal(t, tc.value, q.Value)
		})
	}
}

func TestQuantityDecodingInsideStruct(t *testing.T) {
	// a bad quantity must not reject the surrounding payload
	var line StordOrderLineItem
	err := json.Unmarshal([]byte(`{"item_sku": "SKU-A", "item_quantity": "oops"}`), &line)
	require.NoError(t, err)
	assert.Equal(t, "SKU-A", line.ItemSKU)
	assert.False(t, line.ItemQuantity.Valid)
}

func TestQuantityMarshal(t *testing.T) {
	out, err := json.Marshal(Quantity{Value: 2, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, `2`, string(out))

	out, err = json.Marshal(Quantity{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(out))
}

func TestFlexIDDecoding(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want FlexID
	}{
		{"string", `"abc-1"`, "abc-1"},
		{"number", `12345`, "12345"},
		{"large number keeps digits", `9007199254740993`, "9007199254740993"},
		{"null", `null`, ""},
		{"array", `[1]`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var id FlexID
			err := json.Unmarshal([]byte(tc.in), &id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceStord, DetectSource(json.RawMessage(`{"order_number": "SO-1", "sales_order_lines": []}`)))
	assert.Equal(t, SourceShipbob, DetectSource(json.RawMessage(`{"id": 9001, "shipments": []}`)))
	assert.Equal(t, SourceShipbob, DetectSource(json.RawMessage(`{}`)))
	assert.Equal(t, SourceShipbob, DetectSource(json.RawMessage(`not json`)))
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("stord")
	require.NoError(t, err)
	assert.Equal(t, SourceStord, s)

	s, err = ParseSource("SHIPBOB")
	require.NoError(t, err)
	assert.Equal(t, SourceShipbob, s)

	_, err = ParseSource("amazon")
	assert.ErrorIs(t, err, ErrInvalidSource)
}
