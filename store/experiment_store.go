package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"funneltrack/api/assign"
	"funneltrack/api/models"
)

type ExperimentStore struct {
	db *sql.DB
}

func NewExperimentStore(db *sql.DB) *ExperimentStore {
	return &ExperimentStore{db: db}
}

// GetExperiment loads one experiment with its variants; ErrNotFound when
// no such experiment exists.
func (s *ExperimentStore) GetExperiment(ctx context.Context, experimentID string) (*models.Experiment, error) {
	exp := &models.Experiment{}
	query := `SELECT id, name, start_at, end_at FROM experiments WHERE id = $1;`
	err := readWithRetry(ctx, 2, func() error {
		return s.db.QueryRowContext(ctx, query, experimentID).Scan(&exp.ID, &exp.Name, &exp.StartAt, &exp.EndAt)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("experiment %s: %w", experimentID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get experiment %s: %w", experimentID, err)
	}
	if err := s.loadVariants(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// ActiveExperiments returns snapshots of every experiment whose window
// contains now and which has at least one variant. Assignment always works
// from such a snapshot, never from ambient config.
func (s *ExperimentStore) ActiveExperiments(ctx context.Context, now time.Time) ([]*models.Experiment, error) {
	query := `
		SELECT id, name, start_at, end_at FROM experiments
		WHERE start_at <= $1 AND end_at > $1
		ORDER BY id;
	`
	var experiments []*models.Experiment
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.db.QueryContext(ctx, query, now)
		if err != nil {
			return err
		}
		defer rows.Close()

		experiments = experiments[:0]
		for rows.Next() {
			exp := &models.Experiment{}
			if err := rows.Scan(&exp.ID, &exp.Name, &exp.StartAt, &exp.EndAt); err != nil {
				log.Printf("Error scanning experiment row: %v", err)
				continue
			}
			experiments = append(experiments, exp)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query active experiments: %w", err)
	}

	active := experiments[:0]
	for _, exp := range experiments {
		if err := s.loadVariants(ctx, exp); err != nil {
			return nil, err
		}
		if len(exp.Variants) > 0 {
			active = append(active, exp)
		}
	}
	return active, nil
}

func (s *ExperimentStore) loadVariants(ctx context.Context, exp *models.Experiment) error {
	query := `SELECT id, experiment_id, name, weight FROM variants WHERE experiment_id = $1 ORDER BY id;`
	rows, err := s.db.QueryContext(ctx, query, exp.ID)
	if err != nil {
		return fmt.Errorf("failed to load variants for experiment %s: %w", exp.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Name, &v.Weight); err != nil {
			log.Printf("Error scanning variant row: %v", err)
			continue
		}
		exp.Variants = append(exp.Variants, v)
	}
	return rows.Err()
}

// AssignVariant computes the deterministic assignment for the session and
// freezes it. ON CONFLICT DO NOTHING plus the reread means the first write
// ever made for this (session, experiment) pair stays authoritative: a
// recompute under edited weights can lose the insert race but never
// replace an existing assignment. Returns the frozen variant id, or ok
// false when the experiment is not assignable.
func (s *ExperimentStore) AssignVariant(ctx context.Context, sessionID string, exp *models.Experiment, now time.Time) (string, bool, error) {
	variantID, ok := assign.Pick(sessionID, exp, now)
	if !ok {
		return "", false, nil
	}

	insert := `
		INSERT INTO variant_assignments (session_id, experiment_id, variant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, experiment_id) DO NOTHING;
	`
	if _, err := s.db.ExecContext(ctx, insert, sessionID, exp.ID, variantID); err != nil {
		return "", false, fmt.Errorf("failed to persist assignment for session %s: %w", sessionID, err)
	}

	var frozen string
	reread := `SELECT variant_id FROM variant_assignments WHERE session_id = $1 AND experiment_id = $2;`
	if err := s.db.QueryRowContext(ctx, reread, sessionID, exp.ID).Scan(&frozen); err != nil {
		return "", false, fmt.Errorf("failed to read frozen assignment for session %s: %w", sessionID, err)
	}
	return frozen, true, nil
}

// VariantSessionCounts reports how many sessions each variant of the
// experiment has been assigned.
func (s *ExperimentStore) VariantSessionCounts(ctx context.Context, experimentID string) (map[string]uint64, error) {
	query := `
		SELECT variant_id, COUNT(*) FROM variant_assignments
		WHERE experiment_id = $1
		GROUP BY variant_id;
	`
	counts := make(map[string]uint64)
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.db.QueryContext(ctx, query, experimentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var variantID string
			var n uint64
			if err := rows.Scan(&variantID, &n); err != nil {
				log.Printf("Error scanning assignment count row: %v", err)
				continue
			}
			counts[variantID] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count variant sessions: %w", err)
	}
	return counts, nil
}

// VariantConversionCounts intersects the experiment's assignments with the
// set of sessions the event log reports as converted. The converted set is
// small relative to total sessions, so passing it as an array parameter
// keeps the join on the indexed assignments table.
func (s *ExperimentStore) VariantConversionCounts(ctx context.Context, experimentID string, convertedSessionIDs []string) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	if len(convertedSessionIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT variant_id, COUNT(*) FROM variant_assignments
		WHERE experiment_id = $1 AND session_id = ANY($2)
		GROUP BY variant_id;
	`
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.db.QueryContext(ctx, query, experimentID, pq.Array(convertedSessionIDs))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var variantID string
			var n uint64
			if err := rows.Scan(&variantID, &n); err != nil {
				log.Printf("Error scanning conversion count row: %v", err)
				continue
			}
			counts[variantID] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count variant conversions: %w", err)
	}
	return counts, nil
}
