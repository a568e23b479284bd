package app

import (
	"context"
	"time"

	"quizfest/internal/logger"
	"quizfest/internal/metrics"

	"go.uber.org/zap"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Audited actions.
const (
	ActionLogin          = "admin.login"
	ActionSSOLogin       = "admin.sso.login"
	ActionTwoFactor      = "admin.2fa.verify"
	ActionTwoFactorSetup = "admin.2fa.setup"
	ActionLogout         = "admin.logout"
	ActionSearch         = "admin.search"
	ActionList           = "admin.list"
	ActionExport         = "admin.export"
	ActionContactList    = "admin.contact.list"
)

// Actor identifies who performs an admin operation.
type Actor struct {
	User     string
	ClientIP string
}

// Auditor writes the admin audit trail. Entries carry the actor, action,
// outcome, timestamp and client address, plus caller-provided non-PII fields.
type Auditor struct {
	log *zap.Logger
	now func() time.Time
}

// NewAuditor returns an Auditor writing to l. A nil l resolves the request
// logger from the context at record time.
func NewAuditor(l *zap.Logger) *Auditor {
	return &Auditor{log: l, now: time.Now}
}

// Record writes one audit entry and counts it.
func (a *Auditor) Record(ctx context.Context, actor Actor, action, outcome string, fields ...zap.Field) {
	metrics.AuthEvents.WithLabelValues(action, outcome).Inc()
	if a == nil {
		return
	}

	l := a.log
	if l == nil {
		l = logger.From(ctx)
	}
	all := append([]zap.Field{
		logger.Actor(actor.User),
		logger.Action(action),
		zap.String("outcome", outcome),
		zap.Time("ts", a.now().UTC()),
		logger.ClientIP(actor.ClientIP),
	}, fields...)

	if outcome == OutcomeFailure {
		l.Named("audit").Warn("admin action", all...)
		return
	}
	l.Named("audit").Info("admin action", all...)
}
