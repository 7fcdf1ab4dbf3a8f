package models_test

import (
	"os"
	"path/filepath"
	"testing"

	"panel-bridge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCodeTableLookup(t *testing.T) {
	table := models.DefaultCodeTable()

	cls, known := table.Lookup(1130)
	require.True(t, known)
	require.NotNil(t, cls)
	assert.Equal(t, models.AlarmTypeIntrusion, cls.AlarmType)
	assert.Equal(t, models.SeverityCritical, cls.Severity)

	// Explicit system mapping: present but nil.
	cls, known = table.Lookup(1602)
	assert.True(t, known)
	assert.Nil(t, cls)

	// Absent entirely.
	cls, known = table.Lookup(4242)
	assert.False(t, known)
	assert.Nil(t, cls)
}

func TestDefaultArmCodes(t *testing.T) {
	codes := models.DefaultArmCodes()

	status, ok := codes.Lookup(3401)
	require.True(t, ok)
	assert.Equal(t, models.ArmStatusAway, status)

	status, ok = codes.Lookup(3441)
	require.True(t, ok)
	assert.Equal(t, models.ArmStatusStay, status)

	status, ok = codes.Lookup(1401)
	require.True(t, ok)
	assert.Equal(t, models.ArmStatusDisarmed, status)

	_, ok = codes.Lookup(1130)
	assert.False(t, ok)
}

func TestLoadCodeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.json")
	content := `{
		"1130": {"alarmType": "intrusion", "severity": "critical", "description": "Break-in"},
		"1602": null
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := models.LoadCodeTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	cls, known := table.Lookup(1130)
	require.True(t, known)
	require.NotNil(t, cls)
	assert.Equal(t, "intrusion", cls.AlarmType)
	assert.Equal(t, "Break-in", cls.Description)

	cls, known = table.Lookup(1602)
	assert.True(t, known)
	assert.Nil(t, cls, "JSON null must keep the explicit system-event mapping")
}

func TestLoadCodeTableRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := models.LoadCodeTable(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	badKey := filepath.Join(dir, "badkey.json")
	require.NoError(t, os.WriteFile(badKey, []byte(`{"fire": {}}`), 0o644))
	_, err = models.LoadCodeTable(badKey)
	assert.Error(t, err)

	badJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte(`{`), 0o644))
	_, err = models.LoadCodeTable(badJSON)
	assert.Error(t, err)
}
