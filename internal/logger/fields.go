package logger

import (
	"time"

	"go.uber.org/zap"
)

// RequestID is the chi request id.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method is the HTTP method.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path is the request path, never including the query string.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status is the response status code.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration is the request latency.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ClientIP is the resolved client address.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// Actor is the admin identity performing an action.
func Actor(v string) zap.Field { return zap.String("actor", v) }

// Action names an audited operation.
func Action(v string) zap.Field { return zap.String("action", v) }

// Route is a rate-limit policy key.
func Route(v string) zap.Field { return zap.String("route", v) }
