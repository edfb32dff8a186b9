package goIssuer

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/goIssuer/internal/audit"
)

// AuditEvent is one security-relevant issuer event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the issuer's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs audit events through log under the "audit" name.
func NewZapSink(log *zap.Logger) *ZapSink {
	return audit.NewZapSink(log)
}
