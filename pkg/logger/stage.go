package logger

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StageLogger logs the start, outcome and duration of one pipeline stage
type StageLogger struct {
	logger    Logger
	stage     string
	fields    Fields
	startTime time.Time
}

// StartStage creates a stage logger and emits the start line
func StartStage(stage string, logger Logger) *StageLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	sl := &StageLogger{
		logger:    logger.WithField("stage", stage),
		stage:     stage,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	sl.logger.Debug("Stage started")
	return sl
}

// WithField adds a field reported on completion
func (sl *StageLogger) WithField(key string, value interface{}) *StageLogger {
	sl.fields[key] = value
	return sl
}

// Done completes the stage successfully
func (sl *StageLogger) Done() {
	fields := Fields{"duration": time.Since(sl.startTime).String()}
	for k, v := range sl.fields {
		fields[k] = v
	}
	sl.logger.WithFields(fields).Info("Stage completed")
}

// Fail completes the stage with an error
func (sl *StageLogger) Fail(err error) {
	sl.logger.WithError(err).
		WithField("duration", time.Since(sl.startTime).String()).
		Error("Stage failed")
}

// Entry is one captured log line
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Fields  Fields    `json:"fields,omitempty"`
}

// RunLog is a logrus hook that captures log lines of a single run so
// they can be exported alongside the results.
type RunLog struct {
	mu      sync.Mutex
	entries []Entry
	levels  []logrus.Level
}

// NewRunLog captures entries at minLevel and above
func NewRunLog(minLevel Level) *RunLog {
	lvl, err := logrus.ParseLevel(string(minLevel))
	if err != nil {
		lvl = logrus.InfoLevel
	}

	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= lvl {
			levels = append(levels, l)
		}
	}
	return &RunLog{levels: levels}
}

// Levels implements logrus.Hook
func (r *RunLog) Levels() []logrus.Level {
	return r.levels
}

// Fire implements logrus.Hook
func (r *RunLog) Fire(e *logrus.Entry) error {
	fields := make(Fields, len(e.Data))
	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fields[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Message: e.Message,
		Fields:  fields,
	})
	return nil
}

// Entries returns a copy of the captured entries
func (r *RunLog) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
