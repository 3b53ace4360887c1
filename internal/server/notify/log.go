package notify

import (
	"context"

	"github.com/dmitrijs2005/blindauth/internal/logging"
)

// LogDispatcher writes messages to the log instead of delivering them.
// Useful in development, where the verification link is read from the log.
type LogDispatcher struct {
	logger logging.Logger
}

func NewLogDispatcher(l logging.Logger) *LogDispatcher {
	return &LogDispatcher{logger: l.With("module", "notify")}
}

func (d *LogDispatcher) Send(ctx context.Context, m Message) error {
	d.logger.Info(ctx, "notification",
		"kind", m.Kind,
		"user_id", m.UserID,
		"to", m.To,
		"subject", m.Subject,
		"link", m.Link,
	)
	return nil
}
