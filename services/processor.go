package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
)

// EventProcessor is the asynchronous half of the pipeline: it classifies a
// stored event, applies the device state machine, creates or resolves
// incidents and hands finished incidents to the notification task. Every
// step is idempotent under at-least-once delivery; the processed flag on
// the event is the single-writer guard.
type EventProcessor struct {
	cfg       *config.Config
	devices   interfaces.DeviceRepositoryInterface
	events    interfaces.EventRepositoryInterface
	incidents interfaces.IncidentRepositoryInterface

	classifier *Classifier
	armCodes   models.ArmCodeTable
	enqueuer   Enqueuer
	logger     *slog.Logger
}

// NewEventProcessor creates a new instance of EventProcessor.
func NewEventProcessor(
	cfg *config.Config,
	devices interfaces.DeviceRepositoryInterface,
	events interfaces.EventRepositoryInterface,
	incidents interfaces.IncidentRepositoryInterface,
	classifier *Classifier,
	armCodes models.ArmCodeTable,
	enqueuer Enqueuer,
	logger *slog.Logger,
) *EventProcessor {
	return &EventProcessor{
		cfg:        cfg,
		devices:    devices,
		events:     events,
		incidents:  incidents,
		classifier: classifier,
		armCodes:   armCodes,
		enqueuer:   enqueuer,
		logger:     logger.With("component", "processor"),
	}
}

// Process runs one attempt for an event. Returning an error means the queue
// may retry; all short-circuits (already processed, duplicate, event gone)
// return nil.
func (p *EventProcessor) Process(ctx context.Context, eventUUID string) error {
	event, err := p.events.GetByUUID(eventUUID)
	if err != nil {
		if base.IsEntityNotFound(err) {
			p.logger.Warn("Event vanished before processing", "event_uuid", eventUUID)
			return nil
		}
		return fmt.Errorf("failed to load event: %w", err)
	}

	if event.Processed {
		p.logger.Debug("Event already processed, skipping", "event_uuid", eventUUID)
		return nil
	}

	// Dedup re-check: a racing delivery may have stored its copy after the
	// synchronous check in the webhook path ran.
	duplicate, err := p.events.FindDuplicate(event, p.cfg.DedupWindow)
	if err != nil {
		return fmt.Errorf("dedup re-check failed: %w", err)
	}
	if duplicate != nil && duplicate.CreatedAt.Before(event.CreatedAt) {
		return p.events.MarkProcessed(event.ID, fmt.Sprintf("duplicate of event %s", duplicate.UUID))
	}

	classification := p.classifier.Classify(event)
	if err := p.events.SetClassification(event.ID, classification.AlarmType, classification.Severity, classification.Description); err != nil {
		return fmt.Errorf("failed to store classification: %w", err)
	}

	var device *models.Device
	if event.DeviceID != nil {
		device, err = p.devices.GetByID(*event.DeviceID)
		if err != nil && !base.IsEntityNotFound(err) {
			return fmt.Errorf("failed to load device: %w", err)
		}
	}

	// Arm-code side effect, independent of whether an incident results.
	p.applyArmCode(event, device)

	if err := p.handleIncident(event, device, classification); err != nil {
		return err
	}

	if device != nil {
		if err := p.devices.TouchLastEvent(device.ID, event.TriggeredAt); err != nil {
			p.logger.Error("Failed to touch last event", "device_id", device.ID, slog.Any("error", err))
		}
		if err := p.devices.TouchHeartbeat(device.ID, event.CreatedAt); err != nil {
			p.logger.Error("Failed to touch heartbeat", "device_id", device.ID, slog.Any("error", err))
		}
	}

	return p.events.MarkProcessed(event.ID, "")
}

// RecordTerminalFailure finalizes an event after the retry budget is spent.
// The error lands on the event row instead of being thrown away.
func (p *EventProcessor) RecordTerminalFailure(eventUUID string, cause error) {
	event, err := p.events.GetByUUID(eventUUID)
	if err != nil {
		p.logger.Error("Cannot record terminal failure, event unavailable",
			"event_uuid", eventUUID, slog.Any("error", err))
		return
	}
	message := fmt.Sprintf("processing failed after all attempts: %v", cause)
	if err := p.events.MarkProcessed(event.ID, message); err != nil {
		p.logger.Error("Failed to record terminal failure",
			"event_uuid", eventUUID, slog.Any("error", err))
	}
}

// applyArmCode mirrors arm/disarm reports into the registry.
func (p *EventProcessor) applyArmCode(event *models.Event, device *models.Device) {
	code := PreferredCode(event)
	if code == nil || device == nil {
		return
	}
	armStatus, ok := p.armCodes.Lookup(*code)
	if !ok {
		return
	}
	if err := p.devices.SetArmStatus(device.ID, armStatus); err != nil {
		p.logger.Error("Failed to apply arm code",
			"device_id", device.ID, "cid_code", *code, slog.Any("error", err))
		return
	}
	p.logger.Info("Arm status updated from event",
		"device_id", device.ID, "cid_code", *code, "arm_status", armStatus)
}

// handleIncident creates an incident for an actionable active event, or
// best-effort resolves an open one for a restore/inactive event.
func (p *EventProcessor) handleIncident(event *models.Event, device *models.Device, classification models.Classification) error {
	if classification.AlarmType == "" || classification.AlarmType == models.AlarmTypeSystem {
		return nil
	}

	if event.State != models.EventStateActive {
		p.resolveOpenIncident(event, device)
		return nil
	}

	incident := &models.Incident{
		DeviceID:    event.DeviceID,
		ZoneNumber:  event.ZoneNumber,
		AlarmType:   classification.AlarmType,
		Severity:    classification.Severity,
		Description: p.buildIncidentDescription(event, device, classification),
		TriggeredAt: event.TriggeredAt,
	}
	// Ownership resolves transitively through the installation; a device
	// without one still gets an incident.
	if device != nil && device.Installation != nil {
		incident.ClientID = device.Installation.ClientID
		incident.ContractID = device.Installation.ContractID
	}

	if err := p.incidents.Create(incident); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	if err := p.events.LinkIncident(event.ID, incident.ID); err != nil {
		return fmt.Errorf("failed to link incident: %w", err)
	}

	if err := p.enqueuer.Enqueue(TaskNotifyIncident,
		fmt.Sprintf("%d", incident.ID),
		NotifyIncidentTask{IncidentID: incident.ID}); err != nil {
		// Notification is downstream fan-out; its failure never rolls back
		// the incident.
		p.logger.Error("Failed to enqueue incident notification",
			"incident_id", incident.ID, slog.Any("error", err))
	}

	p.logger.Info("Incident created",
		"incident_id", incident.ID, "event_uuid", event.UUID,
		"alarm_type", incident.AlarmType, "severity", incident.Severity)
	return nil
}

// resolveOpenIncident closes the most recent open incident for the same
// device and zone. Best-effort: with concurrent multi-zone alarms this can
// pick the wrong sibling, which matches how restore correlation behaves on
// the panels themselves.
func (p *EventProcessor) resolveOpenIncident(event *models.Event, device *models.Device) {
	if device == nil {
		return
	}
	incident, err := p.incidents.FindOpenByDeviceZone(device.ID, event.ZoneNumber)
	if err != nil {
		p.logger.Error("Open incident lookup failed", "device_id", device.ID, slog.Any("error", err))
		return
	}
	if incident == nil {
		return
	}
	resolvedBy := fmt.Sprintf("restore event %s", event.UUID)
	if err := p.incidents.Resolve(incident.ID, resolvedBy, event.TriggeredAt); err != nil {
		p.logger.Error("Failed to resolve incident",
			"incident_id", incident.ID, slog.Any("error", err))
		return
	}
	p.logger.Info("Incident resolved by restore event",
		"incident_id", incident.ID, "event_uuid", event.UUID)
}

// buildIncidentDescription assembles the operator-facing summary: what,
// where, on which device, and the raw code for traceability.
func (p *EventProcessor) buildIncidentDescription(event *models.Event, device *models.Device, classification models.Classification) string {
	parts := []string{classification.Description}
	if event.ZoneNumber != nil {
		parts = append(parts, fmt.Sprintf("zone %d", *event.ZoneNumber))
	}
	if device != nil {
		parts = append(parts, device.Name)
		if device.Installation != nil && device.Installation.Address != "" {
			parts = append(parts, device.Installation.Address)
		}
	}
	if code := PreferredCode(event); code != nil {
		parts = append(parts, fmt.Sprintf("CID %d", *code))
	}
	return strings.Join(parts, " - ")
}
