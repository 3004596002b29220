package store

import (
	"context"
	"fmt"
)

// doneAssetPredicate is the SQL form of Asset.Done.
const doneAssetPredicate = `ai_processed = 200
    AND blob_url IS NOT NULL AND blob_url != ''
    AND alt_text IS NOT NULL AND alt_text != ''
    AND caption IS NOT NULL AND caption != ''`

// ProgressSnapshot aggregates pipeline progress across every case. A case
// counts as completed when its imaging stage is done and at least image_count
// of its assets satisfy the completion invariant.
func (s *Store) ProgressSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := s.queryRowContext(ctx, `
        SELECT
            COUNT(1),
            COALESCE(SUM(CASE WHEN convert_status = 0 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN convert_status = 100 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN convert_status >= 400 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(image_count), 0)
        FROM cases`).Scan(
		&snap.Total, &snap.Pending, &snap.Processing, &snap.Failed, &snap.AssetsExpected)
	if err != nil {
		return Snapshot{}, fmt.Errorf("case counts: %w", err)
	}

	err = s.queryRowContext(ctx,
		"SELECT COUNT(1) FROM assets WHERE "+doneAssetPredicate).Scan(&snap.AssetsDone)
	if err != nil {
		return Snapshot{}, fmt.Errorf("done asset count: %w", err)
	}

	err = s.queryRowContext(ctx, `
        SELECT COUNT(1) FROM cases c
        WHERE c.convert_status = 200 AND c.image_count > 0
          AND (SELECT COUNT(1) FROM assets a
               WHERE a.case_id = c.case_id AND `+doneAssetPredicate+`) >= c.image_count`).
		Scan(&snap.Completed)
	if err != nil {
		return Snapshot{}, fmt.Errorf("completed case count: %w", err)
	}

	return snap, nil
}

// AssetStatusCounts returns the number of assets per ai_processed code.
func (s *Store) AssetStatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.queryContext(ctx,
		"SELECT ai_processed, COUNT(1) FROM assets GROUP BY ai_processed")
	if err != nil {
		return nil, fmt.Errorf("asset status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var code, count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[Status(code)] = count
	}
	return counts, rows.Err()
}
