// Package logger provides the structured, hierarchical logging surface used
// throughout the engine. Concrete code never imports logrus directly; it
// depends on the Log interface so the concrete implementation (or a no-op
// stand-in for tests) can be swapped freely.
package logger

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Log is a structured, leveled logger that can be narrowed with additional
// fields as it is passed down through a call chain.
type Log interface {
	WithField(name string, value interface{}) Log
	WithFields(fields Fields) Log
	Trace(args ...interface{})
	Tracef(msg string, args ...interface{})
	Debug(args ...interface{})
	Debugf(msg string, args ...interface{})
	Info(args ...interface{})
	Infof(msg string, args ...interface{})
	Warn(args ...interface{})
	Warnf(msg string, args ...interface{})
	Error(args ...interface{})
	Errorf(msg string, args ...interface{})

	// Event logs a structured event meant for the synchronization pipeline's
	// event publishing side-channel, in addition to the normal log stream.
	Event(name string, fields Fields)
}

// Fields is a set of keys/values to include in a structured log message.
type Fields map[string]interface{}

// LogFactory produces a logger scoped to the given subsystem name, e.g.
// "Scheduler", "JobState", "SyncPipeline".
type LogFactory func(subsystem string) Log

// EventSink receives structured events emitted via Log.Event, regardless of
// which subsystem logger produced them.
type EventSink interface {
	PublishEvent(subsystem, name string, fields Fields)
}

// LogrusLogger is a Log implementation backed by logrus.
type LogrusLogger struct {
	*logrus.Entry
	subsystem string
	sink      EventSink
}

func (l *LogrusLogger) WithField(name string, value interface{}) Log {
	return &LogrusLogger{Entry: l.Entry.WithField(name, value), subsystem: l.subsystem, sink: l.sink}
}

func (l *LogrusLogger) WithFields(fields Fields) Log {
	return &LogrusLogger{Entry: l.Entry.WithFields(logrus.Fields(fields)), subsystem: l.subsystem, sink: l.sink}
}

func (l *LogrusLogger) Event(name string, fields Fields) {
	l.Entry.WithFields(logrus.Fields(fields)).WithField("event", name).Info(name)
	if l.sink != nil {
		l.sink.PublishEvent(l.subsystem, name, fields)
	}
}

// NewLogFactory builds a LogFactory that writes human-readable text to a
// terminal and JSON lines otherwise, matching the dual formatter the
// surrounding tooling expects. sink may be nil if no event side-channel is
// required (e.g. in tests).
func NewLogFactory(level logrus.Level, sink EventSink) LogFactory {
	return func(subsystem string) Log {
		log := logrus.New()
		log.SetLevel(level)
		log.SetOutput(os.Stdout)
		if isatty.IsTerminal(os.Stdout.Fd()) {
			log.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
				DisableQuote:    true,
			})
		} else {
			log.SetFormatter(&logrus.JSONFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
			})
		}
		entry := log.WithField("system", subsystem)
		return &LogrusLogger{Entry: entry, subsystem: subsystem, sink: sink}
	}
}

// NoOpLog implements Log without performing any logging, for tests and
// callers that don't need engine chatter.
type NoOpLog struct{}

func NewNoOpLog() *NoOpLog { return &NoOpLog{} }

// NoOpLogFactory always returns a NoOpLog.
func NoOpLogFactory(subsystem string) Log { return NewNoOpLog() }

func (l *NoOpLog) WithField(name string, value interface{}) Log { return l }
func (l *NoOpLog) WithFields(fields Fields) Log                 { return l }
func (l *NoOpLog) Trace(args ...interface{})                    {}
func (l *NoOpLog) Tracef(msg string, args ...interface{})       {}
func (l *NoOpLog) Debug(args ...interface{})                    {}
func (l *NoOpLog) Debugf(msg string, args ...interface{})       {}
func (l *NoOpLog) Info(args ...interface{})                     {}
func (l *NoOpLog) Infof(msg string, args ...interface{})        {}
func (l *NoOpLog) Warn(args ...interface{})                     {}
func (l *NoOpLog) Warnf(msg string, args ...interface{})        {}
func (l *NoOpLog) Error(args ...interface{})                    {}
func (l *NoOpLog) Errorf(msg string, args ...interface{})       {}
func (l *NoOpLog) Event(name string, fields Fields)             {}
