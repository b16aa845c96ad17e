package notification

import "github.com/quantnest/executor/pkg/models"

// EventFor picks what a notifier reports: the run's current event when one was recorded,
// otherwise a generic notification built from the node's own metadata.
func EventFor(snapshot models.ContextSnapshot, meta *models.NotificationMetadata) (models.EventType, models.EventDetails) {
	if snapshot.EventType != "" && snapshot.Details != nil {
		return snapshot.EventType, *snapshot.Details
	}

	details := models.EventDetails{
		Symbol:      meta.Symbol,
		Exchange:    meta.Exchange,
		TargetPrice: meta.TargetPrice,
	}

	if snapshot.Details != nil {
		if details.Symbol == "" {
			details.Symbol = snapshot.Details.Symbol
		}

		details.AIContext = snapshot.Details.AIContext
	}

	if details.Exchange == "" {
		details.Exchange = "NSE"
	}

	return models.EventNotification, details
}
