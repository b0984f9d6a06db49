package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestJSONLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", JSONFormat: true}, &buf)

	cl := Component(l, "trader")
	cl.Info().Float64("price", 101.5).Msg("Bought")
	cl.Debug().Msg("filtered out")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "trader", entry["component"])
	assert.Equal(t, "Bought", entry["message"])
	assert.Equal(t, 101.5, entry["price"])
	assert.Equal(t, "info", entry["level"])
}

func TestTextLoggerIsReadable(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug"}, &buf)
	l.Debug().Str("state", "WAITING_TO_BUY").Msg("New observation")

	out := buf.String()
	assert.Contains(t, out, "New observation")
	assert.Contains(t, out, "state=WAITING_TO_BUY")
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l, closer := New(Config{Output: path, JSONFormat: true})
	l.Info().Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestTradeContext(t *testing.T) {
	var buf bytes.Buffer
	l := TradeContext(NewWithWriter(Config{JSONFormat: true}, &buf), "BTCUSDT", "BUY", 0.5, 100)
	l.Info().Msg("filled")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, "BUY", entry["side"])
	assert.Equal(t, 0.5, entry["quantity"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{JSONFormat: true}, &buf)
	ctx := NewContext(context.Background(), l)
	FromContext(ctx).Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")

	// no logger stored: disabled, never nil
	assert.NotNil(t, FromContext(context.Background()))
}

func TestGinMiddlewareSetsTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(NewWithWriter(Config{Level: "debug", JSONFormat: true}, &buf)))
	r.GET("/ping", func(c *gin.Context) {
		FromContext(c.Request.Context()).Info().Msg("inside")
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-ID", "abc123")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Header().Get("X-Trace-ID"))
	assert.Contains(t, buf.String(), `"trace_id":"abc123"`)
	assert.Contains(t, buf.String(), "Request completed")

	assert.Len(t, GenerateTraceID(), 32)
}
