package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogTransport writes messages to the log instead of delivering them.
type LogTransport struct {
	log *logrus.Logger
}

func NewLogTransport(log *logrus.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Text)
	return nil
}
