package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shortage-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ReconcileResult reports what a single merge did.
type ReconcileResult struct {
	BatchSize int
	Skipped   int
	Inserted  int
	Updated   int
	Resolved  int
}

// identityOf extracts the source-specific unique key from a raw order.
// Warehouse orders key on order_number, DTC orders on the numeric id.
func identityOf(source models.Source, raw json.RawMessage) string {
	switch source {
	case models.SourceStord:
		var probe struct {
			OrderNumber string `json:"order_number"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return ""
		}
		return probe.OrderNumber
	case models.SourceShipbob:
		var probe struct {
			ID models.FlexID `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return ""
		}
		return string(probe.ID)
	default:
		return ""
	}
}

// Reconcile merges the complete active set for one source against the
// stored state in a single transaction:
//
//   - stored-active identities absent from the batch are resolved
//     (is_active=false, resolved_at=now; payload and first_seen_at kept)
//   - batch identities absent from the store are inserted as active
//   - batch identities already stored are refreshed (payload,
//     last_seen_at=now, is_active=true, resolved_at cleared)
//
// An empty batch is a full resolution sweep for the source. Rows whose
// payload lacks an identity are logged and skipped before the merge.
func (s *Store) Reconcile(ctx context.Context, source models.Source, batch []json.RawMessage, now time.Time) (*ReconcileResult, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	logger := zap.L()
	result := &ReconcileResult{BatchSize: len(batch)}

	identities := make([]string, 0, len(batch))
	payloads := make(map[string]json.RawMessage, len(batch))
	for _, raw := range batch {
		identity := identityOf(source, raw)
		if identity == "" {
			result.Skipped++
			logger.Warn("Skipping order with missing identity",
				zap.String("source", string(source)))
			continue
		}
		if _, seen := payloads[identity]; !seen {
			identities = append(identities, identity)
		}
		payloads[identity] = raw
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin reconcile: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	// Which of the incoming identities already exist, for the
	// insert/update split.
	existing := make(map[string]struct{}, len(identities))
	if len(identities) > 0 {
		query, args, err := sqlx.In(
			fmt.Sprintf("SELECT identity FROM %s WHERE identity IN (?)", table), identities)
		if err != nil {
			return nil, fmt.Errorf("%w: build existence query: %v", ErrStoreUnavailable, err)
		}
		query = tx.Rebind(query)

		var rows []string
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("%w: check stored identities: %v", ErrStoreUnavailable, err)
		}
		for _, identity := range rows {
			existing[identity] = struct{}{}
		}
	}

	// Resolve transitions: active records no longer in the batch.
	resolveQuery := fmt.Sprintf(
		"UPDATE %s SET is_active = FALSE, resolved_at = $1 WHERE is_active = TRUE", table)
	resolveArgs := []interface{}{now}
	if len(identities) > 0 {
		query, args, err := sqlx.In(
			fmt.Sprintf("UPDATE %s SET is_active = FALSE, resolved_at = ? WHERE is_active = TRUE AND identity NOT IN (?)", table),
			now, identities)
		if err != nil {
			return nil, fmt.Errorf("%w: build resolve query: %v", ErrStoreUnavailable, err)
		}
		resolveQuery = tx.Rebind(query)
		resolveArgs = args
	}

	res, err := tx.ExecContext(ctx, resolveQuery, resolveArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve transitions: %v", ErrStoreUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.Resolved = int(n)
	}

	// Insert or refresh every order in the batch. first_seen_at is only
	// written on the insert path; the conflict branch never touches it.
	upsert := fmt.Sprintf(`
		INSERT INTO %s (identity, raw_payload, source, first_seen_at, last_seen_at, is_active, resolved_at)
		VALUES ($1, $2, $3, $4, $4, TRUE, NULL)
		ON CONFLICT (identity) DO UPDATE SET
			raw_payload  = EXCLUDED.raw_payload,
			last_seen_at = EXCLUDED.last_seen_at,
			is_active    = TRUE,
			resolved_at  = NULL`, table)

	for _, identity := range identities {
		if _, err := tx.ExecContext(ctx, upsert, identity, []byte(payloads[identity]), source, now); err != nil {
			return nil, fmt.Errorf("%w: upsert %s/%s: %v", ErrStoreUnavailable, source, identity, err)
		}
		if _, ok := existing[identity]; ok {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit reconcile: %v", ErrStoreUnavailable, err)
	}

	return result, nil
}

// QueryActive returns the raw payloads of every currently-active
// exception for a source, most recently seen first.
func (s *Store) QueryActive(ctx context.Context, source models.Source) ([]json.RawMessage, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	var rows [][]byte
	query := fmt.Sprintf(
		"SELECT raw_payload FROM %s WHERE is_active = TRUE ORDER BY last_seen_at DESC", table)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%w: query active %s: %v", ErrStoreUnavailable, source, err)
	}

	payloads := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, json.RawMessage(row))
	}
	return payloads, nil
}

// QueryByWindow returns the raw payloads of every record across both
// sources whose first_seen_at falls in [start, end], whether still
// active or since resolved. Records that were never active in the
// window's terms (inactive with no resolution) are excluded.
func (s *Store) QueryByWindow(ctx context.Context, start, end time.Time) ([]json.RawMessage, error) {
	query := fmt.Sprintf(`
		SELECT raw_payload FROM (
			SELECT raw_payload, first_seen_at, is_active, resolved_at FROM %s
			UNION ALL
			SELECT raw_payload, first_seen_at, is_active, resolved_at FROM %s
		) combined
		WHERE (is_active = TRUE OR resolved_at IS NOT NULL)
		  AND first_seen_at BETWEEN $1 AND $2`, stordTable, shipbobTable)

	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("%w: query window: %v", ErrStoreUnavailable, err)
	}

	payloads := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, json.RawMessage(row))
	}
	return payloads, nil
}

// QueryByIdentity returns the raw payload for one (source, identity)
// pair, or ErrNotFound.
func (s *Store) QueryByIdentity(ctx context.Context, source models.Source, identity string) (json.RawMessage, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	var raw []byte
	query := fmt.Sprintf("SELECT raw_payload FROM %s WHERE identity = $1 LIMIT 1", table)
	err = s.db.GetContext(ctx, &raw, query, identity)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, source, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query %s/%s: %v", ErrStoreUnavailable, source, identity, err)
	}
	return json.RawMessage(raw), nil
}

// LatestActivity returns the most recent last_seen_at across both
// sources, or ErrNotFound when no record exists yet.
func (s *Store) LatestActivity(ctx context.Context) (time.Time, error) {
	query := fmt.Sprintf(`
		SELECT MAX(last_seen_at) FROM (
			SELECT last_seen_at FROM %s
			UNION ALL
			SELECT last_seen_at FROM %s
		) combined`, stordTable, shipbobTable)

	var latest sql.NullTime
	if err := s.db.GetContext(ctx, &latest, query); err != nil {
		return time.Time{}, fmt.Errorf("%w: query latest activity: %v", ErrStoreUnavailable, err)
	}
	if !latest.Valid {
		return time.Time{}, fmt.Errorf("%w: no refresh has completed yet", ErrNotFound)
	}
	return latest.Time, nil
}
