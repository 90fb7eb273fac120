package api

import (
	"context"
	"net/http"

	"github.com/solvane/phonefleet-console/pkg/models"
)

type phoneListResponse struct {
	Phones []models.Phone `json:"phones"`
}

// ListPhones fetches every phone owned by the signed-in principal.
func (c *Client) ListPhones(ctx context.Context) ([]models.Phone, error) {
	var resp phoneListResponse
	if err := c.do(ctx, http.MethodGet, "/phones", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Phones, nil
}

// PhoneUpdate carries the mutable phone fields for a PATCH.
type PhoneUpdate struct {
	Name             *string `json:"name,omitempty"`
	LogRetentionDays *int    `json:"log_retention_days,omitempty"`
}

func (c *Client) UpdatePhone(ctx context.Context, id string, upd PhoneUpdate) error {
	return c.do(ctx, http.MethodPatch, "/phones/"+id, upd, nil)
}

// DeletePhone removes a phone; the upstream cascades its credentials.
func (c *Client) DeletePhone(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/phones/"+id, nil, nil)
}

type massRequest struct {
	PhoneIDs []string `json:"phone_ids"`
}

type massRotationSettingsRequest struct {
	PhoneIDs []string                `json:"phone_ids"`
	Settings models.RotationSettings `json:"settings"`
}

// CredentialSpec describes the credentials a mass create should mint, one
// per phone.
type CredentialSpec struct {
	Method         models.AuthMethod `json:"method"`
	ProxyType      models.ProxyType  `json:"proxy_type"`
	Username       string            `json:"username,omitempty"`
	Password       string            `json:"password,omitempty"`
	AllowedIP      string            `json:"allowed_ip,omitempty"`
	BandwidthCapMB *int64            `json:"bandwidth_cap_mb,omitempty"`
	ExpiryDays     int               `json:"expiry_days,omitempty"`
}

type massCredentialsRequest struct {
	PhoneIDs []string       `json:"phone_ids"`
	Spec     CredentialSpec `json:"spec"`
}

// MassRotate asks every listed phone to force a new carrier IP.
func (c *Client) MassRotate(ctx context.Context, ids []string) (models.MassActionResult, error) {
	var res models.MassActionResult
	err := c.do(ctx, http.MethodPost, "/phones/actions/rotate", massRequest{PhoneIDs: ids}, &res)
	return res, err
}

// MassDelete removes every listed phone and its credentials.
func (c *Client) MassDelete(ctx context.Context, ids []string) (models.MassActionResult, error) {
	var res models.MassActionResult
	err := c.do(ctx, http.MethodPost, "/phones/actions/delete", massRequest{PhoneIDs: ids}, &res)
	return res, err
}

func (c *Client) MassSetRotationSettings(ctx context.Context, ids []string, settings models.RotationSettings) (models.MassActionResult, error) {
	var res models.MassActionResult
	req := massRotationSettingsRequest{PhoneIDs: ids, Settings: settings}
	err := c.do(ctx, http.MethodPost, "/phones/actions/rotation-settings", req, &res)
	return res, err
}

func (c *Client) MassCreateCredentials(ctx context.Context, ids []string, spec CredentialSpec) (models.MassActionResult, error) {
	var res models.MassActionResult
	req := massCredentialsRequest{PhoneIDs: ids, Spec: spec}
	err := c.do(ctx, http.MethodPost, "/phones/actions/credentials", req, &res)
	return res, err
}

type exportResponse struct {
	Credentials []models.Credential `json:"credentials"`
}

// ExportCredentials fetches the primary credential of every listed phone in
// one batched call. Formatting the export blob happens client-side.
func (c *Client) ExportCredentials(ctx context.Context, ids []string) ([]models.Credential, error) {
	var resp exportResponse
	if err := c.do(ctx, http.MethodPost, "/phones/actions/export", massRequest{PhoneIDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Credentials, nil
}
