package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"panel-bridge/models"
)

// ComputeDedupHash derives the stable identity of a physical event. Two
// webhook deliveries of the same occurrence hash identically; whether they
// are actually treated as duplicates additionally depends on the dedup
// window, checked against the store.
//
// Components: device identity (registry ID when resolved, otherwise source
// MAC, otherwise source IP), the alarm code (standard CID preferred over the
// vendor code), the zone number and the trigger timestamp.
func ComputeDedupHash(event *models.Event) string {
	identity := "unidentified"
	switch {
	case event.DeviceID != nil:
		identity = fmt.Sprintf("device:%d", *event.DeviceID)
	case event.SourceMAC != "":
		identity = "mac:" + models.NormalizeMAC(event.SourceMAC)
	case event.SourceIP != "":
		identity = "ip:" + event.SourceIP
	}

	code := "none"
	if c := PreferredCode(event); c != nil {
		code = fmt.Sprintf("%d", *c)
	}

	zone := "none"
	if event.ZoneNumber != nil {
		zone = fmt.Sprintf("%d", *event.ZoneNumber)
	}

	parts := []string{
		identity,
		code,
		zone,
		event.TriggeredAt.UTC().Format(time.RFC3339),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// PreferredCode selects the alarm code used for classification and
// deduplication: the standard CID code when present, else the vendor code.
func PreferredCode(event *models.Event) *int {
	if event.StandardCIDCode != nil {
		return event.StandardCIDCode
	}
	return event.CIDCode
}
