package services_test

import (
	"testing"

	"panel-bridge/models"
	"panel-bridge/services"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClassifyMappedCode(t *testing.T) {
	classifier := services.NewClassifier(models.DefaultCodeTable(), testLogger())

	event := &models.Event{CIDCode: intPtr(1130)}
	classification := classifier.Classify(event)

	assert.Equal(t, models.AlarmTypeIntrusion, classification.AlarmType)
	assert.Equal(t, models.SeverityCritical, classification.Severity)
	assert.Equal(t, "Burglary alarm", classification.Description)
}

func TestClassifyPrefersStandardCode(t *testing.T) {
	classifier := services.NewClassifier(models.DefaultCodeTable(), testLogger())

	// Vendor code is unknown; the standard CID code maps to fire.
	event := &models.Event{CIDCode: intPtr(9999), StandardCIDCode: intPtr(1110)}
	classification := classifier.Classify(event)

	assert.Equal(t, models.AlarmTypeFire, classification.AlarmType)
	assert.Equal(t, models.SeverityCritical, classification.Severity)
}

func TestClassifyExplicitSystemCode(t *testing.T) {
	classifier := services.NewClassifier(models.DefaultCodeTable(), testLogger())

	// 1602 is the periodic test report, mapped to nil on purpose.
	event := &models.Event{CIDCode: intPtr(1602)}
	classification := classifier.Classify(event)

	assert.Equal(t, models.AlarmTypeSystem, classification.AlarmType)
	assert.Equal(t, models.SeverityNone, classification.Severity)
	assert.Contains(t, classification.Description, "1602")
}

func TestClassifyUnknownCodeFailsOpen(t *testing.T) {
	classifier := services.NewClassifier(models.DefaultCodeTable(), testLogger())

	event := &models.Event{CIDCode: intPtr(8888), UUID: "evt-1"}
	classification := classifier.Classify(event)

	assert.Equal(t, models.AlarmTypeOther, classification.AlarmType)
	assert.Equal(t, models.SeverityLow, classification.Severity)
	assert.Contains(t, classification.Description, "8888")
}

func TestClassifyNoCode(t *testing.T) {
	classifier := services.NewClassifier(models.DefaultCodeTable(), testLogger())

	classification := classifier.Classify(&models.Event{})

	assert.Equal(t, models.AlarmTypeSystem, classification.AlarmType)
	assert.Equal(t, models.SeverityNone, classification.Severity)
	assert.Equal(t, "Unclassified system event", classification.Description)
}
