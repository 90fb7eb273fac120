package api

import (
	"context"
	"net/http"

	"github.com/solvane/phonefleet-console/pkg/models"
)

type serverListResponse struct {
	Servers []models.ProxyServer `json:"servers"`
}

func (c *Client) ListServers(ctx context.Context) ([]models.ProxyServer, error) {
	var resp serverListResponse
	if err := c.do(ctx, http.MethodGet, "/servers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Servers, nil
}

// ServerTelemetry fetches the current traffic figures for one server. The
// telemetry poller fires one of these per server per tick, concurrently, so
// a slow server never stalls the others.
func (c *Client) ServerTelemetry(ctx context.Context, serverID string) (models.TelemetrySample, error) {
	var sample models.TelemetrySample
	err := c.do(ctx, http.MethodGet, "/servers/"+serverID+"/telemetry", nil, &sample)
	sample.ServerID = serverID
	return sample, err
}
