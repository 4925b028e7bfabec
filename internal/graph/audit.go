package graph

import (
	"context"
	"errors"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"worklist-sentinel/internal/models"
)

// ErrIncompleteEvent is returned for purge events missing their run or fingerprint.
var ErrIncompleteEvent = errors.New("purge event missing run id or fingerprint")

// Recorder writes (:Run)-[:PURGED]->(:Token) audit edges.
type Recorder struct {
	driver DriverSessioner
}

// NewRecorder returns a Recorder on driver.
func NewRecorder(driver DriverSessioner) *Recorder {
	return &Recorder{driver: driver}
}

// RecordEvent stores purge events and run summaries; other event types are ignored.
func (r *Recorder) RecordEvent(ctx context.Context, event models.Event) error {
	switch event.Type {
	case models.EventTypePurge:
		if event.RunID == "" || event.Fingerprint == "" {
			return ErrIncompleteEvent
		}
		query, params := BuildPurgeQuery(event)
		return r.runWrite(ctx, query, params)
	case models.EventTypeCycle:
		if event.RunID == "" || event.Summary == nil {
			return nil
		}
		query, params := BuildCycleQuery(event)
		return r.runWrite(ctx, query, params)
	default:
		return nil
	}
}

func (r *Recorder) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			log.Printf("neo4j session close error: %v", err)
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

// BuildPurgeQuery links the run to the purged token fingerprint.
func BuildPurgeQuery(event models.Event) (string, map[string]any) {
	query := "MERGE (r:Run {run_id: $run_id}) " +
		"MERGE (t:Token {fingerprint: $fingerprint}) " +
		"SET t.masked = $masked " +
		"MERGE (r)-[p:PURGED {cycle: $cycle}]->(t) " +
		"SET p.outcome = $outcome, p.at = $at"
	params := map[string]any{
		"run_id":      event.RunID,
		"fingerprint": event.Fingerprint,
		"masked":      event.Token,
		"cycle":       int64(event.Cycle),
		"outcome":     string(event.Outcome),
		"at":          event.At.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	return query, params
}

// BuildCycleQuery keeps the latest cycle summary on the run node.
func BuildCycleQuery(event models.Event) (string, map[string]any) {
	query := "MERGE (r:Run {run_id: $run_id}) " +
		"SET r.last_cycle = $cycle, r.probed = $probed, r.retained = $retained, " +
		"r.purged = coalesce(r.purged, 0) + $purged, r.aborted = $aborted, r.updated_at = $at"
	params := map[string]any{
		"run_id":   event.RunID,
		"cycle":    int64(event.Cycle),
		"probed":   int64(event.Summary.Probed),
		"retained": int64(event.Summary.Retained),
		"purged":   int64(event.Summary.Purged),
		"aborted":  event.Summary.Aborted,
		"at":       event.At.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	return query, params
}
