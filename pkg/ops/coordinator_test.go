package ops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/solvane/phonefleet-console/pkg/api"
	"github.com/solvane/phonefleet-console/pkg/models"
)

// fakeBackend lets each test stub exactly the calls its action exercises.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	rotateResult models.MassActionResult
	rotateErr    error
	deleteResult models.MassActionResult
	deleteErr    error
	credsResult  models.MassActionResult
	credsSpec    api.CredentialSpec
	exportCreds  []models.Credential
	exportErr    error

	groups    []models.Group
	removeErr func(groupID, phoneID string) error
	addErr    error
	// membership tracks group -> set of phone ids, mutated by add/remove.
	membership map[string]map[string]bool
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) MassRotate(ctx context.Context, ids []string) (models.MassActionResult, error) {
	f.record("rotate")
	return f.rotateResult, f.rotateErr
}

func (f *fakeBackend) MassDelete(ctx context.Context, ids []string) (models.MassActionResult, error) {
	f.record("delete")
	return f.deleteResult, f.deleteErr
}

func (f *fakeBackend) MassSetRotationSettings(ctx context.Context, ids []string, settings models.RotationSettings) (models.MassActionResult, error) {
	f.record("rotation-settings")
	return models.MassActionResult{Total: len(ids), Succeeded: len(ids)}, nil
}

func (f *fakeBackend) MassCreateCredentials(ctx context.Context, ids []string, spec api.CredentialSpec) (models.MassActionResult, error) {
	f.record("credentials")
	f.credsSpec = spec
	return f.credsResult, nil
}

func (f *fakeBackend) ExportCredentials(ctx context.Context, ids []string) ([]models.Credential, error) {
	f.record("export")
	return f.exportCreds, f.exportErr
}

func (f *fakeBackend) ListGroups(ctx context.Context) ([]models.Group, error) {
	f.record("list-groups")
	return f.groups, nil
}

func (f *fakeBackend) AddPhonesToGroup(ctx context.Context, groupID string, phoneIDs []string) error {
	f.record("add:" + groupID)
	if f.addErr != nil {
		return f.addErr
	}
	if f.membership != nil {
		for _, id := range phoneIDs {
			if f.membership[groupID] == nil {
				f.membership[groupID] = make(map[string]bool)
			}
			f.membership[groupID][id] = true
		}
	}
	return nil
}

func (f *fakeBackend) RemovePhonesFromGroup(ctx context.Context, groupID string, phoneIDs []string) error {
	f.record(fmt.Sprintf("remove:%s:%v", groupID, phoneIDs))
	if f.removeErr != nil {
		for _, id := range phoneIDs {
			if err := f.removeErr(groupID, id); err != nil {
				return err
			}
		}
	}
	if f.membership != nil {
		for _, id := range phoneIDs {
			delete(f.membership[groupID], id)
		}
	}
	return nil
}

func TestEmptySelectionIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{Kind: KindDelete})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.Total != 0 || out.Result.Succeeded != 0 || out.Result.Failed != 0 {
		t.Errorf("empty selection result = %+v, want all zero", out.Result)
	}
	if len(backend.calls) != 0 {
		t.Errorf("empty selection issued calls: %v", backend.calls)
	}
	if invalidated {
		t.Error("empty selection triggered cache invalidation")
	}
}

func TestBatchedResultPassesThrough(t *testing.T) {
	backend := &fakeBackend{
		deleteResult: models.MassActionResult{
			Total: 3, Succeeded: 2, Failed: 1,
			Errors: []string{"device 3 has an active license"},
		},
	}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{Kind: KindDelete, PhoneIDs: []string{"1", "2", "3"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res := out.Result
	if res.Succeeded+res.Failed != res.Total {
		t.Errorf("succeeded+failed does not equal total: %d+%d != %d", res.Succeeded, res.Failed, res.Total)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 succeeded / 1 failed", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want the one upstream message", res.Errors)
	}
	// A partial success still refreshes the lists.
	if !invalidated {
		t.Error("partial success did not trigger cache invalidation")
	}
}

func TestBatchTransportFailureIsTotalFailure(t *testing.T) {
	backend := &fakeBackend{rotateErr: errors.New("connection refused")}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{Kind: KindRotate, PhoneIDs: []string{"1", "2", "3"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res := out.Result
	if res.Total != 3 || res.Succeeded != 0 || res.Failed != 3 {
		t.Errorf("result = %+v, want total failure {3,0,3}", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want single transport message", res.Errors)
	}
	// A pure failure must not mask itself behind a refetch.
	if invalidated {
		t.Error("total failure triggered cache invalidation")
	}
}

func TestCredentialsGeneratedWhenMissing(t *testing.T) {
	backend := &fakeBackend{
		credsResult: models.MassActionResult{Total: 2, Succeeded: 2},
	}
	c := NewCoordinator(backend, nil)

	req := Request{
		Kind:     KindCredentials,
		PhoneIDs: []string{"1", "2"},
		Credential: &api.CredentialSpec{
			Method:    models.AuthMethodUserPass,
			ProxyType: models.ProxyTypeBoth,
		},
	}
	if _, err := c.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if backend.credsSpec.Username == "" || backend.credsSpec.Password == "" {
		t.Errorf("userpass spec sent without generated credentials: %+v", backend.credsSpec)
	}
}

func TestGroupReassignmentDeterminism(t *testing.T) {
	// Phone 1 starts in groups A and B; set-group to C with
	// remove-from-others must end with membership exactly {C}.
	backend := &fakeBackend{
		groups: []models.Group{
			{ID: "A", Name: "a", PhoneIDs: []string{"1"}},
			{ID: "B", Name: "b", PhoneIDs: []string{"1"}},
			{ID: "C", Name: "c"},
		},
		membership: map[string]map[string]bool{
			"A": {"1": true},
			"B": {"1": true},
			"C": {},
		},
	}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{
		Kind:             KindSetGroup,
		PhoneIDs:         []string{"1"},
		TargetGroupID:    "C",
		RemoveFromOthers: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.Total != 1 || out.Result.Succeeded != 1 || out.Result.Failed != 0 {
		t.Errorf("result = %+v, want {1,1,0}", out.Result)
	}

	for group, members := range backend.membership {
		inGroup := members["1"]
		if group == "C" && !inGroup {
			t.Error("phone 1 not in target group C")
		}
		if group != "C" && inGroup {
			t.Errorf("phone 1 still in group %s", group)
		}
	}

	// The add-to-target call must be last.
	if len(backend.calls) == 0 || backend.calls[len(backend.calls)-1] != "add:C" {
		t.Errorf("calls = %v, want add:C last", backend.calls)
	}
	if !invalidated {
		t.Error("successful reassignment did not trigger cache invalidation")
	}
}

func TestGroupRemovalErrorsTolerated(t *testing.T) {
	notMember := &api.APIError{Status: 404, Message: "phone is not in this group"}
	broken := errors.New("connection reset")

	tests := []struct {
		name       string
		removeErr  func(groupID, phoneID string) error
		wantFailed int
	}{
		{
			// The cached group list claimed membership in B but the phone
			// was already gone. Discarded by design, not a failure; the
			// trailing add still lands it in the target.
			name: "stale_membership_noise",
			removeErr: func(groupID, phoneID string) error {
				if groupID == "B" {
					return notMember
				}
				return nil
			},
			wantFailed: 0,
		},
		{
			// A transport error on a real member counts.
			name: "true_failure",
			removeErr: func(groupID, phoneID string) error {
				if groupID == "B" {
					return broken
				}
				return nil
			},
			wantFailed: 1,
		},
		{"clean", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				groups: []models.Group{
					{ID: "A", Name: "a", PhoneIDs: []string{"1"}},
					{ID: "B", Name: "b", PhoneIDs: []string{"1"}},
					{ID: "C", Name: "c"},
				},
				removeErr: tt.removeErr,
			}
			c := NewCoordinator(backend, nil)

			out, err := c.Run(context.Background(), Request{
				Kind:             KindSetGroup,
				PhoneIDs:         []string{"1"},
				TargetGroupID:    "C",
				RemoveFromOthers: true,
			})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			res := out.Result
			if res.Succeeded+res.Failed != res.Total {
				t.Errorf("succeeded+failed does not equal total: %+v", res)
			}
			if res.Failed != tt.wantFailed {
				t.Errorf("failed = %d, want %d", res.Failed, tt.wantFailed)
			}
			// Regardless of removal noise, the add call runs last.
			if backend.calls[len(backend.calls)-1] != "add:C" {
				t.Errorf("calls = %v, want add:C last", backend.calls)
			}
		})
	}
}

func TestRemoveFromAllGroupsHasNoTrailingAdd(t *testing.T) {
	backend := &fakeBackend{
		groups: []models.Group{
			{ID: "A", Name: "a", PhoneIDs: []string{"1", "2"}},
			{ID: "B", Name: "b", PhoneIDs: []string{"2"}},
		},
		membership: map[string]map[string]bool{
			"A": {"1": true, "2": true},
			"B": {"2": true},
		},
	}
	c := NewCoordinator(backend, nil)

	out, err := c.Run(context.Background(), Request{
		Kind:     KindSetGroup,
		PhoneIDs: []string{"1", "2"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.Total != 2 || out.Result.Succeeded != 2 {
		t.Errorf("result = %+v, want {2,2,0}", out.Result)
	}

	for _, call := range backend.calls {
		if call == "add:A" || call == "add:B" || call == "add:" {
			t.Errorf("remove-from-all issued an add call: %v", backend.calls)
		}
	}
	for group, members := range backend.membership {
		for id, in := range members {
			if in {
				t.Errorf("phone %s still in group %s", id, group)
			}
		}
	}
}

func TestTrailingAddFailureFailsEveryone(t *testing.T) {
	backend := &fakeBackend{
		groups: []models.Group{{ID: "C", Name: "c"}},
		addErr: errors.New("group was deleted"),
	}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{
		Kind:          KindSetGroup,
		PhoneIDs:      []string{"1", "2"},
		TargetGroupID: "C",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.Succeeded != 0 || out.Result.Failed != 2 {
		t.Errorf("result = %+v, want total failure", out.Result)
	}
	if invalidated {
		t.Error("failed add triggered cache invalidation")
	}
}

func TestExportDoesNotInvalidate(t *testing.T) {
	backend := &fakeBackend{
		exportCreds: []models.Credential{{PhoneID: "1", Host: "h", Port: 1}},
	}
	invalidated := false
	c := NewCoordinator(backend, func() { invalidated = true })

	out, err := c.Run(context.Background(), Request{
		Kind:         KindExport,
		PhoneIDs:     []string{"1"},
		ExportFormat: FormatHostPort,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Export == "" {
		t.Error("export outcome has no blob")
	}
	if invalidated {
		t.Error("export triggered cache invalidation")
	}
}

func TestDuplicateIDsDeduped(t *testing.T) {
	backend := &fakeBackend{
		rotateResult: models.MassActionResult{Total: 2, Succeeded: 2},
	}
	c := NewCoordinator(backend, nil)

	out, err := c.Run(context.Background(), Request{Kind: KindRotate, PhoneIDs: []string{"1", "1", "2", ""}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.Total != 2 {
		t.Errorf("total = %d, want deduped 2", out.Result.Total)
	}
}
