package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfoCarriesServiceName(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", Output: &buf})

	logg.Info(context.Background(), "session saved")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "kirana", entry["service"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session saved", entry["message"])
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", Output: &buf})

	ctx := logg.WithBuyerID(context.Background(), "u1")
	ctx = logg.WithCollection(ctx, "cart")
	ctx = logg.WithField(ctx, "attempt", 2)
	logg.Info(ctx, "synced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "u1", entry["buyer_id"])
	assert.Equal(t, "cart", entry["collection"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestContextFieldsDoNotLeakAcrossContexts(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", Output: &buf})

	_ = logg.WithBuyerID(context.Background(), "u1")
	logg.Info(context.Background(), "plain")

	entry := decodeLine(t, &buf)
	_, ok := entry["buyer_id"]
	assert.False(t, ok, "buyer_id attached to an unrelated context")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", Level: zerolog.WarnLevel, Output: &buf})

	logg.Debug(context.Background(), "dropped")
	logg.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	logg.Warn(context.Background(), "kept")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept", entry["message"])
}

func TestErrorIncludesCauseAndStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", Output: &buf})

	logg.Error(context.Background(), "sync failed", assert.AnError)

	entry := decodeLine(t, &buf)
	assert.Equal(t, assert.AnError.Error(), entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestWarnStackOptIn(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "kirana", WarnStack: true, Output: &buf})

	logg.Warn(context.Background(), "degraded")

	entry := decodeLine(t, &buf)
	assert.NotEmpty(t, entry["stack"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" ERROR "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}
