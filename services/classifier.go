package services

import (
	"fmt"
	"log/slog"

	"panel-bridge/models"
)

// Classifier maps alarm codes onto incident types and severities using an
// immutable code table loaded at startup.
type Classifier struct {
	table  *models.CodeTable
	logger *slog.Logger
}

// NewClassifier creates a new instance of Classifier.
func NewClassifier(table *models.CodeTable, logger *slog.Logger) *Classifier {
	return &Classifier{
		table:  table,
		logger: logger.With("component", "classifier"),
	}
}

// Classify resolves an event's classification. Unknown codes fail open:
// they surface as a low-severity "other" incident rather than being
// silently dropped. An event without any code is a plain system event.
func (c *Classifier) Classify(event *models.Event) models.Classification {
	code := PreferredCode(event)
	if code == nil {
		return models.Classification{
			AlarmType:   models.AlarmTypeSystem,
			Severity:    models.SeverityNone,
			Description: "Unclassified system event",
		}
	}

	mapping, known := c.table.Lookup(*code)
	if known && mapping != nil {
		return *mapping
	}
	if known {
		// Explicitly mapped to nil: known system traffic, no incident.
		return models.Classification{
			AlarmType:   models.AlarmTypeSystem,
			Severity:    models.SeverityNone,
			Description: fmt.Sprintf("System event (CID %d)", *code),
		}
	}

	c.logger.Warn("Unknown CID code, classifying as other",
		"cid_code", *code, "event_uuid", event.UUID)
	return models.Classification{
		AlarmType:   models.AlarmTypeOther,
		Severity:    models.SeverityLow,
		Description: fmt.Sprintf("Unknown alarm code %d", *code),
	}
}
