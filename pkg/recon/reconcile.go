// Package recon merges cold REST-fetched phone records with the hot status
// feed snapshot into the single view the console renders. Reconciliation is
// pure and total: a phone with no live event is the common case, never an
// error.
package recon

import (
	"strings"

	"github.com/solvane/phonefleet-console/pkg/models"
)

// Human-readable rotation capability strings. Phone agents report a raw
// mechanism code; older agents report one of these strings directly.
const (
	CapabilityRoot         = "IP rotation available (Root)"
	CapabilityAssistant    = "IP rotation available (Digital Assistant)"
	CapabilityCmd          = "IP rotation available (CMD)"
	CapabilityNotAvailable = "IP rotation not available"
)

// NormalizeRotationCapability maps a raw capability code to its display
// string. Legacy pre-formatted strings containing "available" pass through
// unchanged; every other value, including codes this console does not know
// yet, collapses to not-available rather than surfacing raw.
func NormalizeRotationCapability(code string) string {
	switch code {
	case "root":
		return CapabilityRoot
	case "assistant":
		return CapabilityAssistant
	case "cmd":
		return CapabilityCmd
	}
	if strings.Contains(code, "available") {
		return code
	}
	return CapabilityNotAvailable
}

// Merge combines the REST phone list with the live snapshot, one output per
// input phone in input order.
//
// Status precedence, in order: the live event's status when one has been
// observed, offline when the phone has paired, pending otherwise. A phone
// that paired and then went quiet must read offline, not pending.
func Merge(phones []models.Phone, live map[string]models.StatusEvent) []models.PhoneWithStatus {
	merged := make([]models.PhoneWithStatus, len(phones))
	for i, phone := range phones {
		merged[i] = mergeOne(phone, live)
	}
	return merged
}

func mergeOne(phone models.Phone, live map[string]models.StatusEvent) models.PhoneWithStatus {
	out := models.PhoneWithStatus{Phone: phone}

	ev, seen := live[phone.ID]
	switch {
	case seen && ev.Status != "":
		out.Status = ev.Status
	case seen:
		// A paired-event without a status field still proves the phone is up.
		out.Status = models.StatusOnline
	case phone.PairedAt != nil:
		out.Status = models.StatusOffline
	default:
		out.Status = models.StatusPending
	}

	if !seen {
		return out
	}

	// last_seen comes only from the live event; there is no stale-from-REST
	// fallback.
	out.LastSeen = ev.Timestamp
	out.RotationCapability = NormalizeRotationCapability(ev.RotationCode)
	out.TotalConnections = ev.TotalConnections

	// The live feed reflects current device state, so its SIM fields win
	// over the stored ones.
	if ev.SimCountry != "" {
		out.SimCountry = ev.SimCountry
	}
	if ev.SimCarrier != "" {
		out.SimCarrier = ev.SimCarrier
	}

	// ActiveConnections deliberately stays on the REST-polled figure: the
	// server-side aggregation refreshes more reliably than the on-device
	// push interval.
	return out
}
