package gateways

import (
	"context"
	"log/slog"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// LogGateway is the fallback when no broker is configured: messages are
// logged and dropped. Useful for local development and tests.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Publish(ctx context.Context, channel string, message *models.OutboundMessage) error {
	slog.Info("outbound message",
		"channel", channel,
		"tenantId", message.TenantID,
		"subjectId", message.SubjectID,
		"recipient", message.Recipient,
		"templateId", message.TemplateID)
	return nil
}
