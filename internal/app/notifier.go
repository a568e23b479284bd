package app

import (
	"context"
	"time"

	"quizfest/internal/domain"
	"quizfest/internal/logger"
	"quizfest/internal/metrics"

	"go.uber.org/zap"
)

// Notifier is told about each accepted registration. Implementations are
// best-effort: a failure is logged and never reaches the registrant.
type Notifier interface {
	Name() string
	NotifyRegistration(ctx context.Context, r domain.Registration) error
}

const notifyTimeout = 30 * time.Second

// dispatch runs every notifier in its own goroutine, detached from the
// request context.
func dispatch(ctx context.Context, notifiers []Notifier, r domain.Registration, done func()) {
	if len(notifiers) == 0 {
		if done != nil {
			done()
		}
		return
	}
	l := logger.From(ctx)
	remaining := make(chan struct{}, len(notifiers))
	for _, n := range notifiers {
		go func(n Notifier) {
			defer func() { remaining <- struct{}{} }()
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := n.NotifyRegistration(nctx, r); err != nil {
				metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
				l.Warn("registration notifier failed",
					zap.String("notifier", n.Name()),
					zap.String("registration_number", r.RegistrationNumber),
					zap.Error(err))
			}
		}(n)
	}
	if done != nil {
		go func() {
			for range notifiers {
				<-remaining
			}
			done()
		}()
	}
}
