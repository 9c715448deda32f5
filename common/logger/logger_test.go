package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	subsystem string
	name      string
	fields    Fields
	calls     int
}

func (s *recordingSink) PublishEvent(subsystem, name string, fields Fields) {
	s.subsystem = subsystem
	s.name = name
	s.fields = fields
	s.calls++
}

func newTestLogger(buf *bytes.Buffer, sink EventSink) Log {
	base := logrus.New()
	base.SetOutput(buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	return &LogrusLogger{Entry: base.WithField("system", "Test"), subsystem: "Test", sink: sink}
}

func TestLogrusLogger_EventWritesLogLineAndPublishesToSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	log := newTestLogger(&buf, sink)

	log.Event("job.initiated", Fields{"jobId": "job-1"})

	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, "Test", sink.subsystem)
	assert.Equal(t, "job.initiated", sink.name)
	assert.Equal(t, "job-1", sink.fields["jobId"])
	assert.Contains(t, buf.String(), "job.initiated")
}

func TestLogrusLogger_EventToleratesNilSink(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, nil)

	assert.NotPanics(t, func() {
		log.Event("job.finalized", Fields{})
	})
}

func TestLogrusLogger_WithFieldAndWithFieldsPreserveSubsystemAndSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	log := newTestLogger(&buf, sink)

	scoped := log.WithField("stepId", "step-a").WithFields(Fields{"attempt": 2})
	scoped.Event("step.retry", Fields{})

	assert.Equal(t, "Test", sink.subsystem)
	assert.Contains(t, buf.String(), "stepId")
	assert.Contains(t, buf.String(), "attempt")
}

func TestLogrusLogger_LevelMethodsWriteExpectedLevel(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.JSONFormatter{})
	log := &LogrusLogger{Entry: base.WithField("system", "Test"), subsystem: "Test"}

	log.Warnf("retrying upload after %d attempts", 3)
	assert.Contains(t, buf.String(), "retrying upload after 3 attempts")
	assert.Contains(t, buf.String(), `"level":"warning"`)
}

func TestNewLogFactory_ProducesIndependentSubsystemLoggers(t *testing.T) {
	factory := NewLogFactory(logrus.InfoLevel, nil)
	a := factory("Scheduler")
	b := factory("SyncPipeline")

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotPanics(t, func() {
		a.Info("scheduler ready")
		b.Info("pipeline ready")
	})
}

func TestNoOpLog_SatisfiesLogWithoutPanicking(t *testing.T) {
	var log Log = NewNoOpLog()
	assert.NotPanics(t, func() {
		log = log.WithField("a", 1)
		log = log.WithFields(Fields{"b": 2})
		log.Trace("x")
		log.Tracef("x %d", 1)
		log.Debug("x")
		log.Debugf("x %d", 1)
		log.Info("x")
		log.Infof("x %d", 1)
		log.Warn("x")
		log.Warnf("x %d", 1)
		log.Error("x")
		log.Errorf("x %d", 1)
		log.Event("evt", Fields{})
	})
}

func TestNoOpLogFactory_ReturnsNoOpLog(t *testing.T) {
	log := NoOpLogFactory("anything")
	_, ok := log.(*NoOpLog)
	assert.True(t, ok)
}
