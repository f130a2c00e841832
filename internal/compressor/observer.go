package compressor

import (
	"github.com/sirupsen/logrus"
)

// LogObserver reports search progress to a logrus logger.
type LogObserver struct {
	log logrus.FieldLogger
}

// NewLogObserver returns an Observer writing to log.
func NewLogObserver(log logrus.FieldLogger) *LogObserver {
	return &LogObserver{log: log}
}

// OnAttempt implements Observer.
func (o *LogObserver) OnAttempt(stats AttemptStats) {
	o.log.WithFields(logrus.Fields{
		"attempt": stats.Attempt,
		"format":  stats.Format.String(),
		"quality": stats.Quality,
		"scale":   stats.Scale,
		"width":   stats.Width,
		"height":  stats.Height,
		"size":    stats.Size,
		"target":  stats.TargetSize,
	}).Debug("Compression attempt")
}

// OnFallback implements Observer.
func (o *LogObserver) OnFallback(reason string) {
	o.log.WithField("reason", reason).Warn("Falling back to conservative encode")
}
