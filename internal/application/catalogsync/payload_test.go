package catalogsync

import (
	"encoding/json"
	"testing"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt_Unmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{`3`, 3, false},
		{`"12"`, 12, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"4.0"`, 4, false},
		{`"abc"`, 0, true},
		{`"1e3"`, 1000, false},
		{`"2.5"`, 0, true},
		{`"1e400"`, 0, true},
		{`1e400`, 0, true},
		{`"9223372036854775808"`, 0, true},
		{`1e19`, 0, true},
		{`"NaN"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n FlexInt
			err := json.Unmarshal([]byte(tt.in), &n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Int())
		})
	}
}

func TestFlexInt_OutOfRange(t *testing.T) {
	var n FlexInt
	err := json.Unmarshal([]byte(`"9223372036854775808"`), &n)
	require.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "out of range")
	assert.Zero(t, n.Int())

	_, err = ParsePayload([]byte(`{"source":"feed","data_type":"products","offset":"1e400"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "out of range")
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(`{
		"source":"feed","table_name":"stg_products","data_type":"Products-Inventory",
		"offset":"20","loop":3,"time_interval":"2",
		"attribute_pairs":[{"name_column":"attr_code","value_column":"attr_val"}],
		"retry_failed":true,"extra_flag":"keep"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "feed", p.Source)
	assert.Equal(t, "stg_products", p.Table())
	kind, err := p.Kind()
	require.NoError(t, err)
	assert.Equal(t, catalog.DataTypeInventory, kind)
	assert.Equal(t, 20, p.Offset.Int())
	assert.Equal(t, 3, p.Loop.Int())
	assert.Equal(t, 2, p.TimeInterval.Int())
	assert.True(t, p.RetryFailed)
	assert.Equal(t, catalog.AttributeSchema{{NameColumn: "attr_code", ValueColumn: "attr_val"}}, p.AttributeSchema())

	extra, ok := p.Extra("extra_flag")
	require.True(t, ok)
	assert.JSONEq(t, `"keep"`, string(extra))
}

func TestParsePayload_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"missing source": `{"data_type":"products"}`,
		"unknown kind":   `{"source":"feed","data_type":"orders"}`,
		"negative loop":  `{"source":"feed","data_type":"products","loop":-1}`,
		"bad feed url":   `{"source":"feed","data_type":"products","data_feed_url":"not a url"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePayload([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestPayload_HandoffRoundTrip(t *testing.T) {
	p, err := ParsePayload([]byte(`{"source":"feed","data_type":"products","custom":{"a":1}}`))
	require.NoError(t, err)

	next := p.Handoff(40, 2, "tok-9")
	body, err := json.Marshal(next)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "40", raw["offset"])
	assert.Equal(t, "2", raw["loop"])
	assert.Equal(t, "tok-9", raw["idempotency_token"])
	assert.Equal(t, map[string]any{"a": float64(1)}, raw["custom"])

	// the original is untouched
	assert.Equal(t, 0, p.Offset.Int())
	assert.Empty(t, p.IdempotencyToken)

	forward := next.ForwardTrigger("tok-10")
	assert.Equal(t, 0, forward.Offset.Int())
	assert.Equal(t, 0, forward.Loop.Int())
	assert.Equal(t, "tok-10", forward.IdempotencyToken)
}

func TestPayload_FeedLocation(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    FeedLocation
		wantErr error
	}{
		{
			name:    "google sheet",
			payload: Payload{GoogleSheetID: "abc123", GID: "7"},
			want: FeedLocation{
				URL:     "https://docs.google.com/spreadsheets/d/abc123/export?format=csv&id=abc123&gid=7",
				Charset: DefaultCharset,
			},
		},
		{
			name:    "google sheet default gid",
			payload: Payload{GoogleSheetID: "abc123", Decode: "windows-1252"},
			want: FeedLocation{
				URL:     "https://docs.google.com/spreadsheets/d/abc123/export?format=csv&id=abc123&gid=0",
				Charset: "windows-1252",
			},
		},
		{
			name:    "feed url overrides sheet",
			payload: Payload{GoogleSheetID: "abc123", DataFeedURL: "https://example.com/f.csv"},
			want:    FeedLocation{URL: "https://example.com/f.csv", Charset: DefaultCharset},
		},
		{
			name:    "object wins",
			payload: Payload{DataFeedURL: "https://example.com/f.csv", S3Bucket: "feeds", S3Key: "daily/products.csv"},
			want:    FeedLocation{Bucket: "feeds", Key: "daily/products.csv", Charset: DefaultCharset},
		},
		{
			name:    "missing",
			payload: Payload{},
			wantErr: ErrFeedLocationMissing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.FeedLocation()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
