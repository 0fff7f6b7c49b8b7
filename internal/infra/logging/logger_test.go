package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mkrupp/homecase-lending/internal/infra/logging"
)

// Configure mutates package state, so these tests do not run in parallel.

func TestGetLogger_Configured(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		Level:        "info",
		JSON:         true,
		OutputHandle: &buf,
	}, "lendingsvc")
	t.Cleanup(func() {
		logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "")
	})

	log := logging.GetLogger("svc.catalogsvc")
	log.Debug("hidden")
	log.Info("item added", "item", 3)

	out := buf.String()
	for _, want := range []string{`"app":"lendingsvc"`, `"logger":"svc.catalogsvc"`, `"msg":"item added"`, `"item":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}

	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
}

func TestGetLogger_Discard(t *testing.T) {
	logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "lendingsvc")

	log := logging.GetLogger("svc.catalogsvc")
	if log.Enabled(context.Background(), logging.LevelError) {
		t.Error("discarding logger reports error level as enabled")
	}
}
