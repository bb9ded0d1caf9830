package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger interface using logrus
type BadgerLogrusAdapter struct {
	*logrus.Entry // Embed logrus Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

// Errorf logs an error message
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof logs an info message. Badger is chatty at info, so it goes to debug.
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

// Debugf logs a debug message
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

// ChromeLogger routes chromedp's log callbacks into logrus.
// CDP emits many "unhandled event" lines, so everything but errors is debug.
type ChromeLogger struct {
	entry *logrus.Entry
}

// NewChromeLogger creates a ChromeLogger
func NewChromeLogger(entry *logrus.Entry) *ChromeLogger {
	return &ChromeLogger{entry: entry}
}

// Logf is passed to chromedp.WithLogf
func (c *ChromeLogger) Logf(f string, v ...interface{}) { c.entry.Debugf(f, v...) }

// Debugf is passed to chromedp.WithDebugf
func (c *ChromeLogger) Debugf(f string, v ...interface{}) { c.entry.Tracef(f, v...) }

// Errorf is passed to chromedp.WithErrorf
func (c *ChromeLogger) Errorf(f string, v ...interface{}) {
	msg := f
	if len(v) > 0 {
		msg = strings.TrimSpace(fmt.Sprintf(f, v...))
	}
	// Unknown CDP enum values are harmless and frequent with newer Chrome builds
	if strings.Contains(msg, "could not unmarshal event") {
		c.entry.Debug(msg)
		return
	}
	c.entry.Error(msg)
}

// ForwardWorkerLog re-emits JSON log lines written by the automation worker
// process (on its stderr) through the parent's logger, keeping level and fields.
// Lines that are not JSON are logged verbatim at info. Returns when r is exhausted.
func ForwardWorkerLog(r io.Reader, entry *logrus.Entry) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(line, &fields); err != nil {
			entry.Info(string(line))
			continue
		}

		level := logrus.InfoLevel
		if lv, ok := fields[logrus.FieldKeyLevel].(string); ok {
			if parsed, err := logrus.ParseLevel(lv); err == nil {
				level = parsed
			}
		}
		msg, _ := fields[logrus.FieldKeyMsg].(string)
		delete(fields, logrus.FieldKeyLevel)
		delete(fields, logrus.FieldKeyMsg)
		delete(fields, logrus.FieldKeyTime)

		entry.WithFields(logrus.Fields(fields)).Log(level, msg)
	}
	if err := scanner.Err(); err != nil {
		entry.Debugf("Worker log stream closed: %v", err)
	}
}
