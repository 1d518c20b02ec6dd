package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGinWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf)
	w := NewGinWriter(&l, zerolog.ErrorLevel)

	n, err := w.Write([]byte("  boom \n"))
	assert.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"boom"`)

	buf.Reset()

	_, _ = w.Write([]byte("\n"))
	assert.Empty(t, buf.String())
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer

	mu.Lock()
	prev := logger
	logger = zerolog.New(&buf)
	mu.Unlock()

	t.Cleanup(func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	})

	l := Component("reconciler")
	l.Info().Msg("sweep")

	assert.Contains(t, buf.String(), `"component":"reconciler"`)
}
