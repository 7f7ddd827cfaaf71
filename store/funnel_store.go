package store

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"funneltrack/api/database"
	"funneltrack/api/metrics"
	"funneltrack/api/models"
)

type FunnelStore struct {
	DB *database.ClickHouseClient
}

func NewFunnelStore(chClient *database.ClickHouseClient) *FunnelStore {
	return &FunnelStore{
		DB: chClient,
	}
}

// RecordStages appends funnel events as one batch. Stage names are
// validated before anything is written; the log itself never rejects
// duplicates, since repeat views of the same stage are valid facts.
func (s *FunnelStore) RecordStages(ctx context.Context, events []models.FunnelEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if !models.ValidStage(ev.Stage) {
			return fmt.Errorf("stage %q: %w", ev.Stage, models.ErrInvalidStage)
		}
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO funnel_events (
			event_id, session_id, user_id, stage, occurred_at,
			landing_page_id, cta_id, duration_ms, scroll_depth_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, ev := range events {
		err := batch.Append(
			ev.EventID,
			ev.SessionID,
			ev.UserID,
			string(ev.Stage),
			ev.OccurredAt,
			ev.LandingPageID,
			ev.CTAID,
			ev.DurationMs,
			ev.ScrollDepthPct,
		)
		if err != nil {
			log.Printf("Error appending event to batch (EventID: %s): %v", ev.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// RecordStage appends a single funnel event.
func (s *FunnelStore) RecordStage(ctx context.Context, ev models.FunnelEvent) error {
	return s.RecordStages(ctx, []models.FunnelEvent{ev})
}

// StagesForSession returns every event of one session ordered by
// occurred_at ascending.
func (s *FunnelStore) StagesForSession(ctx context.Context, sessionID string) ([]models.FunnelEvent, error) {
	query := `
		SELECT event_id, session_id, user_id, stage, occurred_at,
		       landing_page_id, cta_id, duration_ms, scroll_depth_pct
		FROM funnel_events
		WHERE session_id = ?
		ORDER BY occurred_at ASC
	`
	var events []models.FunnelEvent
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		events = events[:0]
		for rows.Next() {
			var ev models.FunnelEvent
			var stage string
			if err := rows.Scan(&ev.EventID, &ev.SessionID, &ev.UserID, &stage, &ev.OccurredAt,
				&ev.LandingPageID, &ev.CTAID, &ev.DurationMs, &ev.ScrollDepthPct); err != nil {
				log.Printf("Error scanning funnel event row: %v", err)
				continue
			}
			ev.Stage = models.Stage(stage)
			events = append(events, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stages for session %s: %w", sessionID, err)
	}
	return events, nil
}

// FirstOccurrencePerStage is the canonical progression view: the earliest
// event per stage, taken as min(occurred_at) so late or out-of-order
// delivery cannot corrupt it. Key is a session id by default; set byUser
// to resolve by user id instead.
func (s *FunnelStore) FirstOccurrencePerStage(ctx context.Context, key string, byUser bool) (map[models.Stage]models.FunnelEvent, error) {
	keyColumn := "session_id"
	if byUser {
		keyColumn = "user_id"
	}
	query := fmt.Sprintf(`
		SELECT stage,
		       argMin(event_id, occurred_at) AS event_id,
		       argMin(session_id, occurred_at) AS session_id,
		       argMin(user_id, occurred_at) AS user_id,
		       min(occurred_at) AS first_at,
		       argMin(landing_page_id, occurred_at) AS landing_page_id
		FROM funnel_events
		WHERE %s = ?
		GROUP BY stage
	`, keyColumn)

	first := make(map[models.Stage]models.FunnelEvent)
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, key)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ev models.FunnelEvent
			var stage string
			if err := rows.Scan(&stage, &ev.EventID, &ev.SessionID, &ev.UserID, &ev.OccurredAt, &ev.LandingPageID); err != nil {
				log.Printf("Error scanning first-occurrence row: %v", err)
				continue
			}
			ev.Stage = models.Stage(stage)
			first[ev.Stage] = ev
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query first occurrences for %s %s: %w", keyColumn, key, err)
	}
	return first, nil
}

// StageReachCounts counts distinct sessions that reached each stage within
// the window. An optional landing page id restricts the population to
// sessions whose events carry that page.
func (s *FunnelStore) StageReachCounts(ctx context.Context, start, end time.Time, landingPageID string) (map[models.Stage]uint64, error) {
	query := `
		SELECT stage, uniqExact(session_id) AS sessions
		FROM funnel_events
		WHERE session_id != '' AND occurred_at >= ? AND occurred_at <= ?
	`
	args := []any{start, end}
	if landingPageID != "" {
		query += ` AND session_id IN (
			SELECT session_id FROM funnel_events WHERE landing_page_id = ?
		)`
		args = append(args, landingPageID)
	}
	query += ` GROUP BY stage`

	counts := make(map[models.Stage]uint64)
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var stage string
			var n uint64
			if err := rows.Scan(&stage, &n); err != nil {
				log.Printf("Error scanning stage reach row: %v", err)
				continue
			}
			counts[models.Stage(stage)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stage reach counts: %w", err)
	}
	return counts, nil
}

// AvgMillisBetween computes the mean gap between the first occurrences of
// two stages, over sessions that reached both. Sessions missing either
// stage are excluded by the HAVING clause, never treated as zero.
func (s *FunnelStore) AvgMillisBetween(ctx context.Context, from, to models.Stage, start, end time.Time) (float64, error) {
	if !models.ValidStage(from) || !models.ValidStage(to) {
		return 0, fmt.Errorf("stage pair %q -> %q: %w", from, to, models.ErrInvalidStage)
	}
	query := `
		SELECT avg(dateDiff('millisecond', first_from, first_to))
		FROM (
			SELECT session_id,
			       minIf(occurred_at, stage = ?) AS first_from,
			       minIf(occurred_at, stage = ?) AS first_to
			FROM funnel_events
			WHERE session_id != '' AND occurred_at >= ? AND occurred_at <= ?
			GROUP BY session_id
			HAVING countIf(stage = ?) > 0 AND countIf(stage = ?) > 0
		)
	`
	var avg float64
	err := readWithRetry(ctx, 2, func() error {
		return s.DB.Conn.QueryRow(ctx, query,
			string(from), string(to), start, end, string(from), string(to),
		).Scan(&avg)
	})
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query average time between %s and %s: %w", from, to, err)
	}

	// avg() over an empty subquery yields NaN, which is not a renderable
	// result; report zero like every other empty population.
	if math.IsNaN(avg) {
		return 0, nil
	}
	return avg, nil
}

// CohortStageCounts reports stage reach for the cohort of sessions whose
// first landing event fell on the given calendar date. Membership is fixed
// by that first landing and does not drift as later events accrue.
func (s *FunnelStore) CohortStageCounts(ctx context.Context, cohortDate time.Time) (map[models.Stage]uint64, error) {
	query := `
		SELECT stage, uniqExact(session_id) AS sessions
		FROM funnel_events
		WHERE session_id IN (
			SELECT session_id FROM funnel_events
			WHERE stage = ? AND session_id != ''
			GROUP BY session_id
			HAVING toDate(min(occurred_at)) = toDate(?)
		)
		GROUP BY stage
	`
	counts := make(map[models.Stage]uint64)
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, string(models.StageLanding), cohortDate.Format("2006-01-02"))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var stage string
			var n uint64
			if err := rows.Scan(&stage, &n); err != nil {
				log.Printf("Error scanning cohort row: %v", err)
				continue
			}
			counts[models.Stage(stage)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort for %s: %w", cohortDate.Format("2006-01-02"), err)
	}
	return counts, nil
}

// LandingPageSamples aggregates per-page session and conversion counts.
// A session belongs to the page its earliest page-carrying event names;
// it converts when it ever reaches the conversion stage.
func (s *FunnelStore) LandingPageSamples(ctx context.Context, start, end time.Time, conversionStage models.Stage) ([]metrics.LandingPageSample, error) {
	query := `
		SELECT page_id, count() AS sessions, countIf(conversions > 0) AS converted
		FROM (
			SELECT session_id,
			       argMinIf(landing_page_id, occurred_at, landing_page_id != '') AS page_id,
			       countIf(stage = ?) AS conversions
			FROM funnel_events
			WHERE session_id != '' AND occurred_at >= ? AND occurred_at <= ?
			GROUP BY session_id
			HAVING page_id != ''
		)
		GROUP BY page_id
	`
	var samples []metrics.LandingPageSample
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, string(conversionStage), start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		samples = samples[:0]
		for rows.Next() {
			var sample metrics.LandingPageSample
			if err := rows.Scan(&sample.PageID, &sample.Sessions, &sample.Conversions); err != nil {
				log.Printf("Error scanning landing page row: %v", err)
				continue
			}
			samples = append(samples, sample)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query landing page samples: %w", err)
	}
	return samples, nil
}

// ConvertedSessionIDs lists distinct sessions that reached the conversion
// stage in the window. Conversions are rare relative to sessions, so the
// result stays small enough to feed the Postgres-side assignment join.
func (s *FunnelStore) ConvertedSessionIDs(ctx context.Context, conversionStage models.Stage, start, end time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT session_id
		FROM funnel_events
		WHERE stage = ? AND session_id != '' AND occurred_at >= ? AND occurred_at <= ?
	`
	var ids []string
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.DB.Conn.Query(ctx, query, string(conversionStage), start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				log.Printf("Error scanning converted session row: %v", err)
				continue
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query converted sessions: %w", err)
	}
	return ids, nil
}
