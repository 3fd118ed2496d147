package wspool

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf))

	l.WithField("url", testURL).Warnf("timeout detected for %s", testURL)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, testURL)
	assert.Contains(t, out, "timeout detected")
}

func TestNopLogger(t *testing.T) {
	l := NopLogger().WithField("k", "v")

	l.Debug("d")
	l.Infof("%s", "i")
	l.Warnln("w")
	l.Error("e")
}
