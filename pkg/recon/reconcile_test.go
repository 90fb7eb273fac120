package recon

import (
	"strings"
	"testing"
	"time"

	"github.com/solvane/phonefleet-console/pkg/models"
)

func TestStatusPrecedence(t *testing.T) {
	paired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		pairedAt *time.Time
		live     *models.StatusEvent
		want     models.Status
	}{
		{"paired_no_event", &paired, nil, models.StatusOffline},
		{"unpaired_no_event", nil, nil, models.StatusPending},
		{"live_online_overrides_paired", &paired, &models.StatusEvent{Status: models.StatusOnline}, models.StatusOnline},
		{"live_offline_overrides_unpaired", nil, &models.StatusEvent{Status: models.StatusOffline}, models.StatusOffline},
		{"live_pending_wins", &paired, &models.StatusEvent{Status: models.StatusPending}, models.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phone := models.Phone{ID: "p1", PairedAt: tt.pairedAt}
			live := map[string]models.StatusEvent{}
			if tt.live != nil {
				ev := *tt.live
				ev.PhoneID = "p1"
				live["p1"] = ev
			}

			merged := Merge([]models.Phone{phone}, live)
			if len(merged) != 1 {
				t.Fatalf("Merge returned %d phones, want 1", len(merged))
			}
			if merged[0].Status != tt.want {
				t.Errorf("status = %q, want %q", merged[0].Status, tt.want)
			}
		})
	}
}

func TestCapabilityMappingTotality(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"root", CapabilityRoot},
		{"assistant", CapabilityAssistant},
		{"cmd", CapabilityCmd},
		{"none", CapabilityNotAvailable},
		{"", CapabilityNotAvailable},
		{"some future code", CapabilityNotAvailable},
		// Legacy agents send the pre-formatted string; it passes through.
		{"IP rotation available (Root)", "IP rotation available (Root)"},
		{"rotation available via widget", "rotation available via widget"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := NormalizeRotationCapability(tt.code)
			if got == "" {
				t.Fatalf("NormalizeRotationCapability(%q) returned empty string", tt.code)
			}
			if got != tt.want {
				t.Errorf("NormalizeRotationCapability(%q) = %q, want %q", tt.code, got, tt.want)
			}
			if !strings.Contains(got, "available") {
				t.Errorf("normalized capability %q does not mention availability", got)
			}
		})
	}
}

func TestMergePreservesOrderAndDefaults(t *testing.T) {
	paired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	phones := []models.Phone{
		{ID: "1", PairedAt: &paired},
		{ID: "2"},
	}

	merged := Merge(phones, nil)
	if len(merged) != 2 {
		t.Fatalf("Merge returned %d phones, want 2", len(merged))
	}
	if merged[0].ID != "1" || merged[1].ID != "2" {
		t.Fatalf("Merge reordered input: got [%s %s]", merged[0].ID, merged[1].ID)
	}
	if merged[0].Status != models.StatusOffline {
		t.Errorf("paired phone status = %q, want offline", merged[0].Status)
	}
	if merged[1].Status != models.StatusPending {
		t.Errorf("unpaired phone status = %q, want pending", merged[1].Status)
	}

	// No live event: last_seen and capability stay unset, no storage fallback.
	if merged[0].LastSeen != nil {
		t.Errorf("last_seen = %v without a live event, want nil", merged[0].LastSeen)
	}
	if merged[0].RotationCapability != "" {
		t.Errorf("rotation_capability = %q without a live event, want empty", merged[0].RotationCapability)
	}

	// Then a live event arrives for phone 1 only.
	live := map[string]models.StatusEvent{
		"1": {PhoneID: "1", Status: models.StatusOnline, TotalConnections: 5},
	}
	merged = Merge(phones, live)
	if merged[0].Status != models.StatusOnline {
		t.Errorf("phone 1 status = %q after live event, want online", merged[0].Status)
	}
	if merged[0].TotalConnections != 5 {
		t.Errorf("phone 1 total_connections = %d, want 5", merged[0].TotalConnections)
	}
	if merged[1].Status != models.StatusPending {
		t.Errorf("phone 2 status = %q, want pending", merged[1].Status)
	}
}

func TestMergeFieldSources(t *testing.T) {
	paired := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	seen := time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

	phone := models.Phone{
		ID:                "p1",
		PairedAt:          &paired,
		SimCountry:        "US",
		SimCarrier:        "Stored Carrier",
		ActiveConnections: 7,
	}
	live := map[string]models.StatusEvent{
		"p1": {
			PhoneID:           "p1",
			Status:            models.StatusOnline,
			Timestamp:         &seen,
			RotationCode:      "root",
			TotalConnections:  42,
			ActiveConnections: 3,
			SimCountry:        "DE",
			SimCarrier:        "Live Carrier",
		},
	}

	got := Merge([]models.Phone{phone}, live)[0]

	if got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("last_seen = %v, want %v", got.LastSeen, seen)
	}
	if got.RotationCapability != CapabilityRoot {
		t.Errorf("rotation_capability = %q, want %q", got.RotationCapability, CapabilityRoot)
	}
	// SIM fields prefer the live event.
	if got.SimCountry != "DE" || got.SimCarrier != "Live Carrier" {
		t.Errorf("sim fields = %q/%q, want live values", got.SimCountry, got.SimCarrier)
	}
	// active_connections stays on the REST-polled figure even with a live
	// event present; total_connections comes from the feed.
	if got.ActiveConnections != 7 {
		t.Errorf("active_connections = %d, want REST value 7", got.ActiveConnections)
	}
	if got.TotalConnections != 42 {
		t.Errorf("total_connections = %d, want live value 42", got.TotalConnections)
	}
}

func TestMergeSimFallsBackToStored(t *testing.T) {
	phone := models.Phone{ID: "p1", SimCountry: "US", SimCarrier: "Stored"}
	live := map[string]models.StatusEvent{
		"p1": {PhoneID: "p1", Status: models.StatusOnline},
	}

	got := Merge([]models.Phone{phone}, live)[0]
	if got.SimCountry != "US" || got.SimCarrier != "Stored" {
		t.Errorf("sim fields = %q/%q, want stored fallback", got.SimCountry, got.SimCarrier)
	}
}
