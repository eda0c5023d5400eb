package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer
	logger := Setup(&buf, nil, "warn")

	logger.Info("quiet")
	logger.Warn("loud", "tick", 12)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "tick=12")
}

func TestSetup_InstallsDefault(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer
	Setup(&buf, nil, "info")

	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
}

func TestSetup_FileReceivesCopy(t *testing.T) {
	restoreDefault(t)
	var console, file bytes.Buffer
	logger := Setup(&console, &file, "debug")

	logger.Debug("both")
	assert.Contains(t, console.String(), "both")
	assert.Contains(t, file.String(), "both")
}

func TestSetup_FileKeepsDebugBelowConsoleLevel(t *testing.T) {
	restoreDefault(t)
	var console, file bytes.Buffer
	logger := Setup(&console, &file, "warn")

	logger.Debug("week", "week", 3)
	logger.Warn("invalid configuration")

	assert.NotContains(t, console.String(), "week=3")
	assert.Contains(t, console.String(), "invalid configuration")
	assert.Contains(t, file.String(), "week=3")
	assert.Contains(t, file.String(), "invalid configuration")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTee_ContinuesPastFailedTarget(t *testing.T) {
	var ok bytes.Buffer
	h := tee(slog.NewTextHandler(failingWriter{}, nil), nil, slog.NewTextHandler(&ok, nil))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "tick done", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, ok.String(), "tick done")
}

func TestTee_GroupsAndAttrsReachEveryTarget(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(tee(slog.NewTextHandler(&a, nil), slog.NewTextHandler(&b, nil)))

	logger.With("run", "r1").WithGroup("counts").Info("tick", "h_i", 3)
	for _, out := range []string{a.String(), b.String()} {
		assert.Contains(t, out, "run=r1")
		assert.Contains(t, out, "counts.h_i=3")
	}
}

func TestTee_SingleTargetIsUnwrapped(t *testing.T) {
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	assert.Same(t, inner, tee(nil, inner))
}

func TestSetup_RFC3339Time(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer
	Setup(&buf, nil, "info").Info("stamp")
	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`, buf.String())
}

func TestConsoleHandler_JSONForRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "run.log"))
	require.NoError(t, err)
	defer f.Close()

	logger := slog.New(consoleHandler(f, handlerOptions("info")))
	logger.Info("structured", "humans", 200)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"structured"`)
	assert.Contains(t, string(data), `"humans":200`)
}
