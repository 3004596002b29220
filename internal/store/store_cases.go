package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertCase inserts a case or refreshes its descriptive fields. Pipeline
// state (convert_status, image_count) is never touched by an upsert so
// re-importing scraped data cannot rewind progress.
func (s *Store) UpsertCase(ctx context.Context, record *Case) (*Case, error) {
	if record == nil || record.CaseID == "" {
		return nil, fmt.Errorf("upsert case: case_id is required")
	}
	now := nowTimestamp()
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO cases (case_id, title, url_path, info_html, convert_status, image_count, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (case_id) DO UPDATE SET
             title = excluded.title,
             url_path = excluded.url_path,
             info_html = excluded.info_html,
             updated_at = excluded.updated_at`,
		record.CaseID,
		nullableString(record.Title),
		nullableString(record.URLPath),
		nullableString(record.InfoHTML),
		int(record.ConvertStatus),
		record.ImageCount,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert case %s: %w", record.CaseID, err)
	}
	return s.GetCase(ctx, record.CaseID)
}

// GetCase fetches a case by its public identifier.
func (s *Store) GetCase(ctx context.Context, caseID string) (*Case, error) {
	row := s.queryRowContext(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE case_id = ?", caseID)
	record, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get case %s: %w", caseID, err)
	}
	return record, nil
}

// GetCaseByID fetches a case by its row identifier.
func (s *Store) GetCaseByID(ctx context.Context, id int64) (*Case, error) {
	row := s.queryRowContext(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE id = ?", id)
	record, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get case id %d: %w", id, err)
	}
	return record, nil
}

// ListCasesByConvertStatus returns cases in the given states ordered by id.
func (s *Store) ListCasesByConvertStatus(ctx context.Context, statuses ...Status) ([]*Case, error) {
	query := "SELECT " + caseColumns + " FROM cases"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE convert_status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, int(status))
		}
	}
	query += " ORDER BY id"

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var records []*Case
	for rows.Next() {
		record, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ClaimPendingCases atomically moves up to limit pending cases into
// in-progress and returns the claimed records. Each candidate is claimed with
// a conditional update so two concurrent claimers can never hold the same
// case: the update only applies while the status is still pending, and a
// claim counts only when exactly one row was affected.
func (s *Store) ClaimPendingCases(ctx context.Context, limit int) ([]*Case, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.queryContext(ctx,
		"SELECT id FROM cases WHERE convert_status = ? ORDER BY id LIMIT ?",
		int(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list claim candidates: %w", err)
	}
	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*Case
	now := nowTimestamp()
	for _, id := range ids {
		res, err := s.execWithRetry(ctx,
			`UPDATE cases SET convert_status = ?, last_heartbeat = ?, error_message = NULL, updated_at = ?
             WHERE id = ? AND convert_status = ?`,
			int(StatusInProgress), now, now, id, int(StatusPending))
		if err != nil {
			return claimed, fmt.Errorf("claim case id %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, fmt.Errorf("claim case id %d: rows affected: %w", id, err)
		}
		if affected != 1 {
			// Lost the race to another claimer.
			continue
		}
		record, err := s.GetCaseByID(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, record)
	}
	return claimed, nil
}

// ReleaseCase returns an in-progress case to pending so a later cycle can
// retry it. The optional message is kept for operators.
func (s *Store) ReleaseCase(ctx context.Context, id int64, message string) error {
	err := s.execWithoutResultRetry(ctx,
		`UPDATE cases SET convert_status = ?, last_heartbeat = NULL, error_message = ?, updated_at = ?
         WHERE id = ? AND convert_status = ?`,
		int(StatusPending), nullableString(message), nowTimestamp(), id, int(StatusInProgress))
	if err != nil {
		return fmt.Errorf("release case id %d: %w", id, err)
	}
	return nil
}

// CompleteCaseConversion marks the imaging stage done for an in-progress case.
func (s *Store) CompleteCaseConversion(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE cases SET convert_status = ?, last_heartbeat = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND convert_status = ?`,
		int(StatusDone), nowTimestamp(), id, int(StatusInProgress))
	if err != nil {
		return fmt.Errorf("complete case id %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete case id %d: rows affected: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("complete case id %d: not in progress", id)
	}
	return nil
}

// FailCase parks an in-progress case on a terminal failure code.
func (s *Store) FailCase(ctx context.Context, id int64, code Status, message string) error {
	if !code.Terminal() {
		return fmt.Errorf("fail case id %d: %d is not a failure code", id, int(code))
	}
	err := s.execWithoutResultRetry(ctx,
		`UPDATE cases SET convert_status = ?, last_heartbeat = NULL, error_message = ?, updated_at = ?
         WHERE id = ?`,
		int(code), nullableString(message), nowTimestamp(), id)
	if err != nil {
		return fmt.Errorf("fail case id %d: %w", id, err)
	}
	return nil
}

// SetImageCount records the number of images the case is expected to publish.
// The count is written once; subsequent calls never lower an established
// count, so a partially published case keeps its original expectation.
func (s *Store) SetImageCount(ctx context.Context, id int64, count int) error {
	if count < 0 {
		return fmt.Errorf("set image count: negative count %d", count)
	}
	err := s.execWithoutResultRetry(ctx,
		`UPDATE cases SET image_count = ?, updated_at = ?
         WHERE id = ? AND (image_count = 0 OR image_count < ?)`,
		count, nowTimestamp(), id, count)
	if err != nil {
		return fmt.Errorf("set image count for case id %d: %w", id, err)
	}
	return nil
}

// CaseComplete reports whether every expected asset of the case has finished
// the pipeline. Completion is derived, never stored.
func (s *Store) CaseComplete(ctx context.Context, caseID string) (bool, error) {
	record, err := s.GetCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	if record.ConvertStatus != StatusDone || record.ImageCount == 0 {
		return false, nil
	}
	done, err := s.DoneAssetCount(ctx, caseID)
	if err != nil {
		return false, err
	}
	return done >= record.ImageCount, nil
}
