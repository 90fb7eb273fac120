// Package ops applies one logical action across a caller-chosen set of
// phones, tolerating partial failure and reporting an aggregate outcome the
// caller can render without inspecting individual call errors.
package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/solvane/phonefleet-console/pkg/api"
	"github.com/solvane/phonefleet-console/pkg/auth"
	"github.com/solvane/phonefleet-console/pkg/models"
)

// Kind tags the mass-action variants. They share one result shape but differ
// in payload and execution strategy: most are a single batched upstream
// call, set-group decomposes into sequenced per-phone calls.
type Kind string

const (
	KindRotate           Kind = "rotate"
	KindDelete           Kind = "delete"
	KindRotationSettings Kind = "rotation-settings"
	KindCredentials      Kind = "credentials"
	KindExport           Kind = "export"
	KindSetGroup         Kind = "set-group"
)

// Request selects an action and its payload.
type Request struct {
	Kind     Kind     `json:"kind"`
	PhoneIDs []string `json:"phone_ids"`

	RotationSettings *models.RotationSettings `json:"rotation_settings,omitempty"`
	Credential       *api.CredentialSpec      `json:"credential,omitempty"`
	ExportFormat     ExportFormat             `json:"export_format,omitempty"`

	// TargetGroupID is the group a set-group assigns to; empty means remove
	// from all groups.
	TargetGroupID    string `json:"target_group_id,omitempty"`
	RemoveFromOthers bool   `json:"remove_from_others,omitempty"`
}

// Outcome is the result of one coordinator run. Export carries the formatted
// blob for KindExport and is empty otherwise.
type Outcome struct {
	Result models.MassActionResult `json:"result"`
	Export string                  `json:"export,omitempty"`
}

// Backend is the slice of the upstream client the coordinator drives.
type Backend interface {
	MassRotate(ctx context.Context, ids []string) (models.MassActionResult, error)
	MassDelete(ctx context.Context, ids []string) (models.MassActionResult, error)
	MassSetRotationSettings(ctx context.Context, ids []string, settings models.RotationSettings) (models.MassActionResult, error)
	MassCreateCredentials(ctx context.Context, ids []string, spec api.CredentialSpec) (models.MassActionResult, error)
	ExportCredentials(ctx context.Context, ids []string) ([]models.Credential, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	AddPhonesToGroup(ctx context.Context, groupID string, phoneIDs []string) error
	RemovePhonesFromGroup(ctx context.Context, groupID string, phoneIDs []string) error
}

type Coordinator struct {
	backend Backend

	// onMutated signals the caller to refresh the phone and group caches. It
	// fires only for mutating kinds and only when at least one item
	// succeeded; a pure failure must not mask itself behind a refetch.
	onMutated func()
}

func NewCoordinator(backend Backend, onMutated func()) *Coordinator {
	return &Coordinator{backend: backend, onMutated: onMutated}
}

// Run dispatches the request. The returned error covers malformed requests
// only; upstream failures land in the aggregate result instead.
func (c *Coordinator) Run(ctx context.Context, req Request) (Outcome, error) {
	if len(req.PhoneIDs) == 0 {
		// Operating on an empty selection is a no-op, not an error.
		return Outcome{}, nil
	}
	ids := dedupe(req.PhoneIDs)

	var out Outcome
	var err error
	switch req.Kind {
	case KindRotate:
		res, callErr := c.backend.MassRotate(ctx, ids)
		out.Result = c.batched(ids, res, callErr)
	case KindDelete:
		res, callErr := c.backend.MassDelete(ctx, ids)
		out.Result = c.batched(ids, res, callErr)
	case KindRotationSettings:
		if req.RotationSettings == nil {
			return Outcome{}, fmt.Errorf("ops: rotation-settings action requires settings")
		}
		res, callErr := c.backend.MassSetRotationSettings(ctx, ids, *req.RotationSettings)
		out.Result = c.batched(ids, res, callErr)
	case KindCredentials:
		out.Result, err = c.createCredentials(ctx, ids, req.Credential)
	case KindExport:
		out, err = c.export(ctx, ids, req.ExportFormat)
	case KindSetGroup:
		out.Result = c.setGroup(ctx, ids, req.TargetGroupID, req.RemoveFromOthers)
	default:
		return Outcome{}, fmt.Errorf("ops: unknown action kind %q", req.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}

	if mutating(req.Kind) && out.Result.Succeeded > 0 && c.onMutated != nil {
		c.onMutated()
	}
	return out, nil
}

func mutating(k Kind) bool {
	return k != KindExport
}

// batched folds a server-batched call into the aggregate shape. A transport
// or validation error at the batch level is a total failure, never a partial
// guess.
func (c *Coordinator) batched(ids []string, res models.MassActionResult, err error) models.MassActionResult {
	if err != nil {
		slog.Error("mass action failed at batch level", "phones", len(ids), "error", err)
		return models.AllFailed(len(ids), err.Error())
	}
	return res
}

func (c *Coordinator) createCredentials(ctx context.Context, ids []string, spec *api.CredentialSpec) (models.MassActionResult, error) {
	if spec == nil {
		return models.MassActionResult{}, fmt.Errorf("ops: credentials action requires a credential spec")
	}
	filled := *spec
	if filled.Method == models.AuthMethodUserPass && filled.Username == "" {
		user, pass, err := auth.GenerateProxyCredential()
		if err != nil {
			return models.MassActionResult{}, fmt.Errorf("generating credential: %w", err)
		}
		filled.Username = user
		filled.Password = pass
	}
	res, err := c.backend.MassCreateCredentials(ctx, ids, filled)
	return c.batched(ids, res, err), nil
}

func (c *Coordinator) export(ctx context.Context, ids []string, format ExportFormat) (Outcome, error) {
	creds, err := c.backend.ExportCredentials(ctx, ids)
	if err != nil {
		return Outcome{Result: models.AllFailed(len(ids), err.Error())}, nil
	}
	blob, err := FormatExport(creds, format)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Result: models.MassActionResult{Total: len(ids), Succeeded: len(ids)},
		Export: blob,
	}, nil
}

// setGroup assigns every phone to exactly the target group. When removal
// from other groups is requested, the removal calls run first and are
// individually fault-tolerated; the unconditional add-to-target call runs
// last, so the terminal membership is "only in target" even if some removal
// failed. An empty target is the same removal loop with no trailing add.
func (c *Coordinator) setGroup(ctx context.Context, ids []string, targetID string, removeFromOthers bool) models.MassActionResult {
	groups, err := c.backend.ListGroups(ctx)
	if err != nil {
		return models.AllFailed(len(ids), err.Error())
	}

	result := models.MassActionResult{Total: len(ids)}
	failed := make(map[string]bool)

	if removeFromOthers || targetID == "" {
		for _, phoneID := range ids {
			for _, group := range groups {
				if group.ID == targetID || !group.Contains(phoneID) {
					continue
				}
				err := c.backend.RemovePhonesFromGroup(ctx, group.ID, []string{phoneID})
				if err == nil {
					continue
				}
				if membershipAlreadyGone(err) {
					// The cached group list was stale and the phone was not
					// actually a member. Not a real failure.
					slog.Debug("ignoring removal from a group the phone was not in", "phone", phoneID, "group", group.ID)
					continue
				}
				failed[phoneID] = true
				result.Errors = append(result.Errors, fmt.Sprintf("phone %s: remove from group %s: %v", phoneID, group.Name, err))
			}
		}
	}

	if targetID != "" {
		if err := c.backend.AddPhonesToGroup(ctx, targetID, ids); err != nil {
			return models.AllFailed(len(ids), fmt.Sprintf("add to group: %v", err))
		}
	}

	result.Failed = len(failed)
	result.Succeeded = result.Total - result.Failed
	return result
}

// membershipAlreadyGone reports whether a removal error just means the phone
// was not in the group to begin with.
func membershipAlreadyGone(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
