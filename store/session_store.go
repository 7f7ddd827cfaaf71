package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"funneltrack/api/models"
	"funneltrack/api/utils"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `session_id, created_at, last_seen_at, referrer_url, referrer_domain,
	utm_source, utm_campaign, utm_medium, browser_fingerprint, user_id,
	assigned_experiment_id, assigned_variant_id`

func scanSession(row interface{ Scan(...any) error }, s *models.Session, extra ...any) error {
	dest := []any{
		&s.SessionID, &s.CreatedAt, &s.LastSeenAt, &s.ReferrerURL, &s.ReferrerDomain,
		&s.UTMSource, &s.UTMCampaign, &s.UTMMedium, &s.BrowserFingerprint, &s.UserID,
		&s.AssignedExperimentID, &s.AssignedVariantID,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

// CreateOrTouchSession inserts the session on first contact, deriving
// referrer_domain from the raw referrer, or advances last_seen_at on
// repeat contact. The ON CONFLICT clause touches nothing but last_seen_at,
// so derived and assigned fields survive replays untouched; concurrent
// calls race harmlessly to a last-write-wins timestamp. The created flag
// comes from the xmax system column (0 only for freshly inserted rows).
func (s *SessionStore) CreateOrTouchSession(ctx context.Context, sessionID string, attrs models.SessionAttributes) (*models.Session, bool, error) {
	referrerDomain := utils.ExtractReferrerDomain(attrs.ReferrerURL)

	query := `
		INSERT INTO sessions (
			session_id, referrer_url, referrer_domain,
			utm_source, utm_campaign, utm_medium, browser_fingerprint
		)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		ON CONFLICT (session_id) DO UPDATE SET last_seen_at = now()
		RETURNING ` + sessionColumns + `, (xmax = 0) AS created;
	`

	session := &models.Session{}
	var created bool
	row := s.db.QueryRowContext(ctx, query,
		sessionID, attrs.ReferrerURL, referrerDomain,
		attrs.UTMSource, attrs.UTMCampaign, attrs.UTMMedium, attrs.BrowserFingerprint,
	)
	if err := scanSession(row, session, &created); err != nil {
		return nil, false, fmt.Errorf("failed to create or touch session %s: %w", sessionID, err)
	}
	return session, created, nil
}

// GetSession looks up a session directly; a missing row is ErrNotFound.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = $1;`

	err := readWithRetry(ctx, 2, func() error {
		return scanSession(s.db.QueryRowContext(ctx, query, sessionID), session)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return session, nil
}

// LinkUserToSession resolves the most recent session carrying the given
// fingerprint and links it to the user. The conditional UPDATE is the
// atomicity point: under concurrent linkage attempts exactly one write
// lands, and every later one observes already-linked. No matching session
// is a success too, reported as no-session-found.
func (s *SessionStore) LinkUserToSession(ctx context.Context, fingerprint, userID string) (models.LinkResult, *models.Session, error) {
	var sessionID string
	lookup := `
		SELECT session_id FROM sessions
		WHERE browser_fingerprint = $1
		ORDER BY last_seen_at DESC
		LIMIT 1;
	`
	err := s.db.QueryRowContext(ctx, lookup, fingerprint).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return models.LinkNoSession, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve session by fingerprint: %w", err)
	}

	update := `
		UPDATE sessions SET user_id = $1
		WHERE session_id = $2 AND user_id IS NULL;
	`
	res, err := s.db.ExecContext(ctx, update, userID, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to link user %s to session %s: %w", userID, sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read link result: %w", err)
	}

	session, getErr := s.GetSession(ctx, sessionID)
	if getErr != nil {
		return "", nil, getErr
	}

	if affected == 0 {
		// The session already carried a user_id: first linkage wins and
		// this attempt is dropped on purpose, loudly enough to audit.
		log.Printf("Session %s already linked; dropping linkage to user %s", sessionID, userID)
		return models.LinkAlreadyLinked, session, nil
	}
	return models.LinkLinked, session, nil
}

// SetAssignedVariant mirrors a frozen assignment onto the session row.
// The IS NULL guard keeps the first written assignment authoritative.
func (s *SessionStore) SetAssignedVariant(ctx context.Context, sessionID, experimentID, variantID string) error {
	query := `
		UPDATE sessions
		SET assigned_experiment_id = $1, assigned_variant_id = $2
		WHERE session_id = $3 AND assigned_variant_id IS NULL;
	`
	if _, err := s.db.ExecContext(ctx, query, experimentID, variantID, sessionID); err != nil {
		return fmt.Errorf("failed to set assigned variant on session %s: %w", sessionID, err)
	}
	return nil
}

// TrafficSourceCounts groups sessions created in the window by acquisition
// source: utm_source when present, else referrer_domain, else direct.
func (s *SessionStore) TrafficSourceCounts(ctx context.Context, start, end time.Time) (map[string]uint64, error) {
	query := `
		SELECT COALESCE(utm_source, referrer_domain, 'direct') AS source, COUNT(*)
		FROM sessions
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY source;
	`
	counts := make(map[string]uint64)
	err := readWithRetry(ctx, 2, func() error {
		rows, err := s.db.QueryContext(ctx, query, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var source string
			var n uint64
			if err := rows.Scan(&source, &n); err != nil {
				log.Printf("Error scanning traffic source row: %v", err)
				continue
			}
			counts[source] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic sources: %w", err)
	}
	return counts, nil
}

// SessionCount reports how many sessions were created in the window.
func (s *SessionStore) SessionCount(ctx context.Context, start, end time.Time) (uint64, error) {
	var n uint64
	query := `SELECT COUNT(*) FROM sessions WHERE created_at >= $1 AND created_at <= $2;`
	err := readWithRetry(ctx, 2, func() error {
		return s.db.QueryRowContext(ctx, query, start, end).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
