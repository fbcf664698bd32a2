// Package netlog is the connection/transport-facing logger, reusing
// pkg/logger's colored bracket texture (Section/Banner box drawing,
// Debug/Info/Warn/Error/Success/InfoCyan level split) but backed by
// logrus so callers get structured fields (peer address, channel ID,
// packet type) alongside the human-readable line.
package netlog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ANSI color codes, matching pkg/logger's palette.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorWhite  = "\033[37m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// highlightField carries a non-standard color override (used by Success
// and InfoCyan, which aren't logrus levels) through to the formatter.
const highlightField = "netlog.highlight"

const (
	highlightSuccess = "success"
	highlightCyan    = "cyan"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&bracketFormatter{timeFormat: "15:04:05"})
}

// SetLevel sets the minimum log level, mirroring pkg/logger.SetLevel's
// debug/info/warn/error scale.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// SetTimeFormat sets the timestamp layout used by the bracket prefix.
func SetTimeFormat(format string) {
	if f, ok := base.Formatter.(*bracketFormatter); ok {
		f.timeFormat = format
	}
}

// ShowTime enables or disables the timestamp prefix.
func ShowTime(show bool) {
	if f, ok := base.Formatter.(*bracketFormatter); ok {
		f.hideTime = !show
	}
}

// bracketFormatter renders a logrus.Entry as "[time] [LEVEL] message",
// colored the way pkg/logger.formatMessage does, with fields rendered as
// trailing key=value pairs.
type bracketFormatter struct {
	timeFormat string
	hideTime   bool
}

func (f *bracketFormatter) Format(e *logrus.Entry) ([]byte, error) {
	prefix, color := levelPrefix(e.Level)
	if hl, ok := e.Data[highlightField]; ok {
		switch hl {
		case highlightSuccess:
			prefix, color = "SUCCESS", colorGreen
		case highlightCyan:
			prefix, color = "INFO", colorCyan
		}
	}

	timestamp := ""
	if !f.hideTime {
		timestamp = fmt.Sprintf("%s[%s]%s ", colorGray, e.Time.Format(f.timeFormat), colorReset)
	}

	line := fmt.Sprintf("%s%s[%s]%s %s", timestamp, color, prefix, colorReset, e.Message)
	for k, v := range e.Data {
		if k == highlightField {
			continue
		}
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	line += "\n"
	return []byte(line), nil
}

func levelPrefix(level logrus.Level) (string, string) {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG", colorGray
	case logrus.WarnLevel:
		return "WARN", colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR", colorRed
	default:
		return "INFO", colorWhite
	}
}

// Fields is a shorthand for logrus.Fields, so callers don't need to import
// logrus directly just to attach structured context to a log line.
type Fields = logrus.Fields

func Debug(format string, args ...interface{}) { base.Debugf(format, args...) }
func Info(format string, args ...interface{})  { base.Infof(format, args...) }
func Warn(format string, args ...interface{})  { base.Warnf(format, args...) }
func Error(format string, args ...interface{}) { base.Errorf(format, args...) }

// Fatal logs at error severity and exits, matching pkg/logger.Fatal.
func Fatal(format string, args ...interface{}) {
	base.WithField(highlightField, "").Errorf(format, args...)
	os.Exit(1)
}

// Success logs an info-severity message in green, for completed
// handshakes and clean disconnects.
func Success(format string, args ...interface{}) {
	base.WithField(highlightField, highlightSuccess).Infof(format, args...)
}

// InfoCyan logs an info-severity message in cyan, for connection
// lifecycle highlights (new peer, channel registered).
func InfoCyan(format string, args ...interface{}) {
	base.WithField(highlightField, highlightCyan).Infof(format, args...)
}

// WithFields returns a logrus.Entry pre-populated with structured
// context (peer address, channel ID, packet type) for call sites that
// want both the bracket line and queryable fields.
func WithFields(fields Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Section prints a section header, identical in shape to pkg/logger.Section.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", colorCyan, border, colorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", colorCyan, colorReset, title, colorCyan, colorReset)
	fmt.Printf("%s╚%s╝%s\n\n", colorCyan, border, colorReset)
}

// Banner prints the application banner.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ███╗   ██╗███████╗████████╗ ██████╗ ██████╗ ██████╗    ║
║   ████╗  ██║██╔════╝╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗   ║
║   ██╔██╗ ██║█████╗     ██║   ██║     ██║   ██║██║  ██║   ║
║   ██║╚██╗██║██╔══╝     ██║   ██║     ██║   ██║██║  ██║   ║
║   ██║ ╚████║███████╗   ██║   ╚██████╗╚██████╔╝██████╔╝   ║
║   ╚═╝  ╚═══╝╚══════╝   ╚═╝    ╚═════╝ ╚═════╝ ╚═════╝    ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, colorCyan, title, colorReset, colorGreen, version, colorReset)
}
