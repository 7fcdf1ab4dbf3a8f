package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
)

// Publisher is the outbound messaging hand-off. Implemented by mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v interface{}) error
}

// incidentSummary is the message downstream notifiers receive. Actual
// delivery channels (SMS, email, push) live outside the bridge.
type incidentSummary struct {
	IncidentID  uint      `json:"incidentId"`
	ClientID    *uint     `json:"clientId"`
	DeviceID    *uint     `json:"deviceId"`
	ZoneNumber  *int      `json:"zoneNumber"`
	AlarmType   string    `json:"alarmType"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// IncidentNotifier runs the incident.notify task: it fans a freshly created
// incident out to the notification topic. Its failure never touches the
// incident itself.
type IncidentNotifier struct {
	incidents interfaces.IncidentRepositoryInterface
	publisher Publisher
	logger    *slog.Logger
}

// NewIncidentNotifier creates a new instance of IncidentNotifier.
func NewIncidentNotifier(incidents interfaces.IncidentRepositoryInterface, publisher Publisher, logger *slog.Logger) *IncidentNotifier {
	return &IncidentNotifier{
		incidents: incidents,
		publisher: publisher,
		logger:    logger.With("component", "notifier"),
	}
}

// Notify publishes the incident summary. Returning an error lets the queue
// retry within the notification task's own budget.
func (n *IncidentNotifier) Notify(ctx context.Context, incidentID uint) error {
	incident, err := n.incidents.GetByID(incidentID)
	if err != nil {
		if base.IsEntityNotFound(err) {
			n.logger.Warn("Incident vanished before notification", "incident_id", incidentID)
			return nil
		}
		return fmt.Errorf("failed to load incident: %w", err)
	}

	topic := fmt.Sprintf("alarm/incidents/%s", incident.Severity)
	summary := incidentSummary{
		IncidentID:  incident.ID,
		ClientID:    incident.ClientID,
		DeviceID:    incident.DeviceID,
		ZoneNumber:  incident.ZoneNumber,
		AlarmType:   incident.AlarmType,
		Severity:    incident.Severity,
		Description: incident.Description,
		TriggeredAt: incident.TriggeredAt,
	}
	if err := n.publisher.PublishJSON(topic, summary); err != nil {
		return fmt.Errorf("failed to publish incident notification: %w", err)
	}

	n.logger.Info("Incident notification published", "incident_id", incident.ID, "topic", topic)
	return nil
}
