package netlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func captured() (*bytes.Buffer, func()) {
	var buf bytes.Buffer
	oldOut := base.Out
	oldLevel := base.Level
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)
	return &buf, func() {
		base.SetOutput(oldOut)
		base.SetLevel(oldLevel)
	}
}

func TestInfoProducesBracketedLine(t *testing.T) {
	buf, restore := captured()
	defer restore()

	Info("peer %s connected", "abc")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "peer abc connected") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSuccessUsesSuccessPrefix(t *testing.T) {
	buf, restore := captured()
	defer restore()

	Success("handshake complete")

	if !strings.Contains(buf.String(), "[SUCCESS]") {
		t.Errorf("expected SUCCESS prefix, got %q", buf.String())
	}
}

func TestWithFieldsRendersKeyValuePairs(t *testing.T) {
	buf, restore := captured()
	defer restore()

	WithFields(Fields{"channel": 3}).Info("message queued")

	out := buf.String()
	if !strings.Contains(out, "channel=3") {
		t.Errorf("expected channel field in output, got %q", out)
	}
}

func TestWarnBelowLevelIsSuppressed(t *testing.T) {
	buf, restore := captured()
	defer restore()
	base.SetLevel(logrus.ErrorLevel)

	Warn("should not appear")

	if buf.Len() != 0 {
		t.Errorf("expected no output at ErrorLevel, got %q", buf.String())
	}
}
