package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRendersLabeledLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, false)

	log.Info("compiling snippet", slog.String("snippet", "agent1_ab_1"))
	log.Warn("snippet rejected by compiler")
	log.Error("session failed", slog.Int("agent", 3))
	log.Log(context.Background(), LevelSuccess, "snippet compiled")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"[INFO] compiling snippet snippet=agent1_ab_1",
		"[WARN] snippet rejected by compiler",
		"[ERROR] session failed agent=3",
		"[OK] snippet compiled",
	}, lines)
}

func TestHandlerHonorsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn, false)

	log.Info("dropped")
	log.Debug("dropped too")
	log.Warn("kept")

	assert.Equal(t, "[WARN] kept\n", buf.String())
}

func TestHandlerWithAttrsPrefixesEveryLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, false).With(slog.Int("agent", 7))

	log.Info("conversation opened", slog.String("turn", "r1"))

	assert.Equal(t, "[INFO] conversation opened agent=7 turn=r1\n", buf.String())
}

func TestHandlerColorWrapsLabelOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, true)

	log.Info("hello")

	assert.Equal(t, colorBlue+"[INFO]"+colorReset+" hello\n", buf.String())
}
