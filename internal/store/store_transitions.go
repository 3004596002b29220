package store

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat refreshes the heartbeat timestamp for an in-flight case.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowTimestamp()
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE cases SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing releases cases whose claimer stopped heartbeating
// before the cutoff, and captioning claims that have not advanced since the
// cutoff. Asset claims carry no heartbeat, so their updated_at stands in:
// a live captioning attempt settles every claimed asset well within one
// heartbeat timeout. The released records go back to pending and are picked
// up by the next cycle.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := nowTimestamp()
	cutoffValue := cutoff.UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(ctx,
		`UPDATE assets SET ai_processed = ?, updated_at = ?
         WHERE ai_processed = ? AND updated_at < ?`,
		int(StatusPending), now,
		int(StatusInProgress), cutoffValue); err != nil {
		return 0, fmt.Errorf("reclaim stale assets: %w", err)
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET convert_status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE convert_status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		int(StatusPending), now,
		int(StatusInProgress), cutoffValue)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale cases: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing releases every in-progress claim regardless of
// heartbeat age. Used on daemon startup after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := nowTimestamp()
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE assets SET ai_processed = ?, updated_at = ? WHERE ai_processed = ?`,
		int(StatusPending), now, int(StatusInProgress)); err != nil {
		return 0, fmt.Errorf("reset stuck assets: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET convert_status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE convert_status = ?`,
		int(StatusPending), now, int(StatusInProgress))
	if err != nil {
		return 0, fmt.Errorf("reset stuck cases: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedCases moves terminally failed cases back to pending. With no ids
// every failed case is retried.
func (s *Store) RetryFailedCases(ctx context.Context, ids ...int64) (int64, error) {
	now := nowTimestamp()
	if len(ids) == 0 {
		res, err := s.execWithRetry(ctx,
			`UPDATE cases SET convert_status = ?, error_message = NULL, updated_at = ?
             WHERE convert_status >= 400`,
			int(StatusPending), now)
		if err != nil {
			return 0, fmt.Errorf("retry failed cases: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, int(StatusPending), now)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET convert_status = ?, error_message = NULL, updated_at = ?
         WHERE convert_status >= 400 AND id IN (`+makePlaceholders(len(ids))+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected cases: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedAssets moves terminally failed assets back to pending so the
// captioning stage reattempts only the failed portion of a case.
func (s *Store) RetryFailedAssets(ctx context.Context, caseID string) (int64, error) {
	now := nowTimestamp()
	query := `UPDATE assets SET ai_processed = ?, error_message = NULL, updated_at = ?
         WHERE ai_processed >= 400`
	args := []any{int(StatusPending), now}
	if caseID != "" {
		query += " AND case_id = ?"
		args = append(args, caseID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed assets: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailedCases deletes terminally failed cases along with their assets
// and tag links. Used when a failed record will never be retried, e.g. the
// source page was removed.
func (s *Store) ClearFailedCases(ctx context.Context) (int64, error) {
	const failedCases = `SELECT case_id FROM cases WHERE convert_status >= 400`

	if err := s.execWithoutResultRetry(ctx,
		`DELETE FROM assets WHERE case_id IN (`+failedCases+`)`); err != nil {
		return 0, fmt.Errorf("clear failed assets: %w", err)
	}
	if err := s.execWithoutResultRetry(ctx,
		`DELETE FROM tag_relations WHERE case_id IN (`+failedCases+`)`); err != nil {
		return 0, fmt.Errorf("clear failed tag links: %w", err)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM cases WHERE convert_status >= 400`)
	if err != nil {
		return 0, fmt.Errorf("clear failed cases: %w", err)
	}
	return res.RowsAffected()
}
