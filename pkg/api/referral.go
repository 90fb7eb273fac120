package api

import (
	"context"
	"log/slog"
	"net/http"
)

type referralVisit struct {
	Code string `json:"code"`
}

// TrackReferral records a referral link visit. The ping is best-effort by
// design: failures are logged at debug level and otherwise dropped.
func (c *Client) TrackReferral(ctx context.Context, code string) {
	if err := c.do(ctx, http.MethodPost, "/affiliate/visits", referralVisit{Code: code}, nil); err != nil {
		slog.Debug("referral tracking ping failed", "code", code, "error", err)
	}
}
