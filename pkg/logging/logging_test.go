package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", FormatJSON, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}

	log.WithField("frames", 100).Debug("mapped")
	out := buf.String()
	if !strings.Contains(out, `"frames":100`) || !strings.Contains(out, `"msg":"mapped"`) {
		t.Errorf("json output = %q", out)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("loud", FormatText, nil); err == nil {
		t.Error("New() with bad level should fail")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Error("New() with bad format should fail")
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing happens")
	if log.IsLevelEnabled(logrus.ErrorLevel) {
		t.Error("Discard() logger should not enable error level")
	}
}
