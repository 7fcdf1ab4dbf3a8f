package services

// Task types dispatched on the work queue.
const (
	TaskProcessEvent   = "event.process"
	TaskNotifyIncident = "incident.notify"
	TaskRefreshDevices = "devices.refresh"
)

// ProcessEventTask is the payload of an event.process task. The event UUID
// doubles as the idempotency key.
type ProcessEventTask struct {
	EventUUID string `json:"eventUuid"`
}

// NotifyIncidentTask is the payload of an incident.notify task.
type NotifyIncidentTask struct {
	IncidentID uint `json:"incidentId"`
}

// Enqueuer hands tasks to the work queue. Implemented by queue.Dispatcher.
type Enqueuer interface {
	Enqueue(taskType, id string, payload interface{}) error
}
