package syncer

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/metrics"
)

// HandleWebhookEvent turns one provider callback into a queue action.
//
// A SUCCESS event enqueues a high priority status check, once per export id
// within the dedupe window. If that enqueue fails the dedupe key is released
// and the error is returned so the provider's own retry can redeliver it.
// FAILED and PROGRESS events are only logged.
func (s *Service) HandleWebhookEvent(ctx context.Context, event domain.WebhookEvent) (domain.WebhookAction, error) {
	action, err := s.handleWebhookEvent(ctx, event)
	if err == nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.EventType, string(action)).Inc()
	}
	return action, err
}

func (s *Service) handleWebhookEvent(ctx context.Context, event domain.WebhookEvent) (domain.WebhookAction, error) {
	exportID := event.Payload.ExportID
	logger := s.logger.With(
		slog.String("event_type", event.EventType),
		slog.String("export_id", exportID),
	)

	switch event.EventType {
	case domain.WebhookExportSuccess:
		if exportID == "" {
			return "", domain.NewValidationError("payload.export_id", "export id is required")
		}

		key := "webhook:export:" + exportID
		acquired, err := s.locker.Acquire(ctx, key, s.config.WebhookDedupeTTL)
		if err != nil {
			return "", err
		}
		if !acquired {
			logger.Info("Duplicate export success webhook ignored")
			return domain.WebhookActionDuplicate, nil
		}

		job, err := s.queue.Enqueue(ctx, domain.JobKindExportStatusCheck, domain.ExportStatusCheckPayload{ExportID: exportID}, domain.EnqueueOptions{
			Priority: domain.PriorityHigh,
		})
		if err != nil {
			if relErr := s.locker.Release(ctx, key); relErr != nil {
				logger.Warn("Failed to release webhook dedupe key", slog.String("error", relErr.Error()))
			}
			logger.Error("Failed to enqueue status check for webhook", slog.String("error", err.Error()))
			return "", err
		}

		logger.Info("Export success webhook enqueued status check", slog.String("job_id", job.JobID))
		return domain.WebhookActionEnqueued, nil

	case domain.WebhookExportFailed:
		logger.Error("Provider reported export failure",
			slog.String("status", event.Payload.Status),
			slog.String("error", event.Payload.Error),
		)
		return domain.WebhookActionLogged, nil

	case domain.WebhookExportProgress:
		attrs := []any{slog.String("status", event.Payload.Status)}
		if event.Payload.ProcessedProfiles != nil {
			attrs = append(attrs, slog.Int("processed_profiles", *event.Payload.ProcessedProfiles))
		}
		if event.Payload.TotalProfiles != nil {
			attrs = append(attrs, slog.Int("total_profiles", *event.Payload.TotalProfiles))
		}
		logger.Info("Export progress", attrs...)
		return domain.WebhookActionLogged, nil

	default:
		logger.Warn("Unhandled webhook event type")
		return domain.WebhookActionIgnored, nil
	}
}
