package api

import (
	"context"
	"net/http"

	"github.com/solvane/phonefleet-console/pkg/models"
)

type groupListResponse struct {
	Groups []models.Group `json:"groups"`
}

func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var resp groupListResponse
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

type groupCreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (c *Client) CreateGroup(ctx context.Context, name, color string) (*models.Group, error) {
	var group models.Group
	if err := c.do(ctx, http.MethodPost, "/groups", groupCreateRequest{Name: name, Color: color}, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+id, nil, nil)
}

type membershipRequest struct {
	PhoneIDs []string `json:"phone_ids"`
}

// AddPhonesToGroup references the phones from the group. Membership is
// edited through these calls, never through the group entity.
func (c *Client) AddPhonesToGroup(ctx context.Context, groupID string, phoneIDs []string) error {
	return c.do(ctx, http.MethodPost, "/groups/"+groupID+"/phones", membershipRequest{PhoneIDs: phoneIDs}, nil)
}

// RemovePhonesFromGroup drops the phones from the group. Removing a phone
// that is not in the group is an upstream error; callers in cleanup loops
// treat that case as best-effort.
func (c *Client) RemovePhonesFromGroup(ctx context.Context, groupID string, phoneIDs []string) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+groupID+"/phones", membershipRequest{PhoneIDs: phoneIDs}, nil)
}
