package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the ownership event stream.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) []events.EventType {
	if notificationService == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	subscribed := notificationService.RegisterHandlers()
	types := make([]string, 0, len(subscribed))
	for _, t := range subscribed {
		types = append(types, string(t))
	}
	logger.Info("notification worker started", zap.Strings("events", types))
	return subscribed
}
