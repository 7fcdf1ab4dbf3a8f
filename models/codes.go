package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Classification is the result of looking up a CID code in the code table.
type Classification struct {
	AlarmType   string `json:"alarmType"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// CodeTable maps numeric CID codes to classifications. A code mapped to a
// nil classification is a known system event that must never raise an
// incident; a code missing from the table entirely is unknown and is
// classified "other". The table is built once at startup and treated as
// immutable afterwards.
type CodeTable struct {
	entries map[int]*Classification
}

// Lookup returns the classification for a code. The second return reports
// whether the code is present in the table at all, so callers can tell an
// explicit nil mapping apart from an unknown code.
func (t *CodeTable) Lookup(code int) (*Classification, bool) {
	c, ok := t.entries[code]
	return c, ok
}

// Len returns the number of mapped codes.
func (t *CodeTable) Len() int {
	return len(t.entries)
}

// ArmCodeTable maps CID codes to the arm status they imply. It is applied
// independently of the classification table: an arm code updates the device
// state even when its event raises no incident.
type ArmCodeTable map[int]string

// Lookup returns the arm status implied by a code, if any.
func (t ArmCodeTable) Lookup(code int) (string, bool) {
	status, ok := t[code]
	return status, ok
}

// DefaultCodeTable returns the built-in Contact-ID classification table.
// Codes follow the qualifier convention: 1xxx = new event, 3xxx = restore.
func DefaultCodeTable() *CodeTable {
	return &CodeTable{entries: map[int]*Classification{
		// Medical
		1100: {AlarmType: AlarmTypeMedical, Severity: SeverityCritical, Description: "Medical emergency"},
		1101: {AlarmType: AlarmTypeMedical, Severity: SeverityCritical, Description: "Personal emergency"},

		// Fire
		1110: {AlarmType: AlarmTypeFire, Severity: SeverityCritical, Description: "Fire alarm"},
		1111: {AlarmType: AlarmTypeFire, Severity: SeverityCritical, Description: "Smoke detected"},
		3110: {AlarmType: AlarmTypeFire, Severity: SeverityLow, Description: "Fire alarm restore"},

		// Panic
		1120: {AlarmType: AlarmTypePanic, Severity: SeverityCritical, Description: "Panic alarm"},
		1122: {AlarmType: AlarmTypePanic, Severity: SeverityHigh, Description: "Silent panic alarm"},

		// Burglary / intrusion
		1130: {AlarmType: AlarmTypeIntrusion, Severity: SeverityCritical, Description: "Burglary alarm"},
		1131: {AlarmType: AlarmTypeIntrusion, Severity: SeverityCritical, Description: "Perimeter breach"},
		1132: {AlarmType: AlarmTypeIntrusion, Severity: SeverityCritical, Description: "Interior breach"},
		1134: {AlarmType: AlarmTypeIntrusion, Severity: SeverityHigh, Description: "Entry/exit zone alarm"},
		3130: {AlarmType: AlarmTypeIntrusion, Severity: SeverityCritical, Description: "Burglary alarm"},

		// Tamper
		1137: {AlarmType: AlarmTypeTamper, Severity: SeverityHigh, Description: "Panel tamper"},
		1144: {AlarmType: AlarmTypeTamper, Severity: SeverityHigh, Description: "Sensor tamper"},

		// Faults
		1301: {AlarmType: AlarmTypeFault, Severity: SeverityMedium, Description: "AC power loss"},
		1302: {AlarmType: AlarmTypeFault, Severity: SeverityMedium, Description: "Low system battery"},
		1384: {AlarmType: AlarmTypeFault, Severity: SeverityLow, Description: "Sensor low battery"},

		// System events: explicitly mapped to nil, never raise an incident.
		1601: nil, // manual test report
		1602: nil, // periodic test report
		1570: nil, // zone bypass
		3570: nil, // zone bypass restore

		// Arm/disarm reports are system events here; the arm-code table
		// applies their state transition.
		1401: nil,
		3401: nil,
		3441: nil,
		1407: nil,
		3407: nil,
	}}
}

// DefaultArmCodes returns the built-in CID code to arm-status table.
// 401 = open/close by user, 407 = remote open/close, 441 = stay arm.
func DefaultArmCodes() ArmCodeTable {
	return ArmCodeTable{
		3401: ArmStatusAway,
		3407: ArmStatusAway,
		3441: ArmStatusStay,
		1401: ArmStatusDisarmed,
		1407: ArmStatusDisarmed,
		1441: ArmStatusDisarmed,
	}
}

// LoadCodeTable reads a classification table from a JSON file of the form
// {"1130": {"alarmType": "...", "severity": "...", "description": "..."},
// "1602": null}. JSON null keeps the explicit system-event semantics.
func LoadCodeTable(path string) (*CodeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read code table %s: %w", path, err)
	}

	var raw map[string]*Classification
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse code table %s: %w", path, err)
	}

	entries := make(map[int]*Classification, len(raw))
	for key, value := range raw {
		code, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid CID code %q in %s: %w", key, path, err)
		}
		entries[code] = value
	}
	return &CodeTable{entries: entries}, nil
}
