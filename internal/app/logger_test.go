package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name      string
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{name: "info text", level: "info", format: "text"},
		{name: "debug json", level: "debug", format: "json", wantDebug: true, wantJSON: true},
		{name: "unknown level falls back to info", level: "loud", format: "text"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tc.level, tc.format, &buf)

			logger.Debug("Polling runtime.")
			logger.Info("Worker started.", "concurrency", 2)

			out := buf.String()
			assert.Equal(t, tc.wantDebug, bytes.Contains(buf.Bytes(), []byte("Polling runtime.")))
			assert.Contains(t, out, "Worker started.")
			if tc.wantJSON {
				lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
				var rec map[string]any
				require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
				assert.Equal(t, "chidori", rec["app"])
				assert.Contains(t, rec, "source", "debug logs carry source positions")
				return
			}
			assert.Contains(t, out, "app=chidori")
		})
	}
}
