// FILE: internal/service/analytics_service.go
package service

import (
	"context"

	"qna-dialog-be/internal/pkg/logger"
	"qna-dialog-be/pkg/events"
	pkgNats "qna-dialog-be/pkg/nats"
)

// IAnalyticsService tails the turn-decision stream and writes the analytics
// log the dashboards ingest.
type IAnalyticsService interface {
	Start() error
}

type analyticsService struct {
	subscriber *pkgNats.Subscriber
	logger     logger.ILogger
}

func NewAnalyticsService(subscriber *pkgNats.Subscriber, analyticsLogger logger.ILogger) IAnalyticsService {
	return &analyticsService{
		subscriber: subscriber,
		logger:     analyticsLogger,
	}
}

func (as *analyticsService) Start() error {
	return as.subscriber.Subscribe("dialog.>", "dialog-analytics", as.handleEvent)
}

func (as *analyticsService) handleEvent(_ context.Context, event events.Event) error {
	as.logger.Info("analytics", "Dialog event", event.Payload())
	return nil
}
