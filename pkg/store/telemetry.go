package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solvane/phonefleet-console/pkg/models"
)

var selectSamples = `SELECT s.* FROM telemetry_samples s`

// TelemetryStore provides database operations for server telemetry history.
type TelemetryStore interface {
	// RecordSample persists one poll observation.
	RecordSample(sample *models.TelemetrySample) error
	// SamplesSince retrieves a server's samples newer than the given time,
	// oldest first.
	SamplesSince(serverID string, since time.Time) ([]*models.TelemetrySample, error)
	// LatestPerServer retrieves the most recent sample for every server.
	LatestPerServer() ([]*models.TelemetrySample, error)
	// PruneBefore drops samples older than the cutoff and reports how many.
	PruneBefore(cutoff time.Time) (int64, error)
}

type postgresTelemetryStore struct {
	db *sqlx.DB
}

// NewTelemetryStore creates a new telemetry history store.
func NewTelemetryStore(dbconn *sqlx.DB) TelemetryStore {
	return &postgresTelemetryStore{db: dbconn}
}

func (s *postgresTelemetryStore) RecordSample(sample *models.TelemetrySample) error {
	stmt := `
	INSERT INTO telemetry_samples (server_id, active_connections, total_connections, bytes_in, bytes_out, online_phones, sampled_at)
	VALUES (:server_id, :active_connections, :total_connections, :bytes_in, :bytes_out, :online_phones, :sampled_at);
	`

	_, err := s.db.NamedExec(stmt, sample)
	return err
}

func (s *postgresTelemetryStore) SamplesSince(serverID string, since time.Time) ([]*models.TelemetrySample, error) {
	query := selectSamples + " WHERE s.server_id = $1 AND s.sampled_at >= $2 ORDER BY s.sampled_at;"
	var samples []*models.TelemetrySample
	err := s.db.Select(&samples, query, serverID, since)
	if err == sql.ErrNoRows {
		return []*models.TelemetrySample{}, nil
	}
	return samples, err
}

func (s *postgresTelemetryStore) LatestPerServer() ([]*models.TelemetrySample, error) {
	query := `
	SELECT DISTINCT ON (s.server_id) s.*
	FROM telemetry_samples s
	ORDER BY s.server_id, s.sampled_at DESC;
	`
	var samples []*models.TelemetrySample
	err := s.db.Select(&samples, query)
	if err == sql.ErrNoRows {
		return []*models.TelemetrySample{}, nil
	}
	return samples, err
}

func (s *postgresTelemetryStore) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM telemetry_samples WHERE sampled_at < $1;`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
