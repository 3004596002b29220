package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAsset inserts an asset or refreshes its source metadata. Keyed on
// (case_id, filename) so re-running the imaging stage converges on the same
// rows instead of duplicating them. Caption fields and ai_processed are left
// alone on conflict.
func (s *Store) UpsertAsset(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil || asset.CaseID == "" || asset.Filename == "" {
		return nil, fmt.Errorf("upsert asset: case_id and filename are required")
	}
	now := nowTimestamp()
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO assets (case_id, filename, source_url, is_primary, sort_order, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (case_id, filename) DO UPDATE SET
             source_url = excluded.source_url,
             is_primary = excluded.is_primary,
             sort_order = excluded.sort_order,
             updated_at = excluded.updated_at`,
		asset.CaseID,
		asset.Filename,
		nullableString(asset.SourceURL),
		boolToInt(asset.IsPrimary),
		asset.SortOrder,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert asset %s/%s: %w", asset.CaseID, asset.Filename, err)
	}
	return s.GetAsset(ctx, asset.CaseID, asset.Filename)
}

// GetAsset fetches an asset by case and filename.
func (s *Store) GetAsset(ctx context.Context, caseID, filename string) (*Asset, error) {
	row := s.queryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE case_id = ? AND filename = ?",
		caseID, filename)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s/%s: %w", caseID, filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s/%s: %w", caseID, filename, err)
	}
	return asset, nil
}

// GetAssetByID fetches an asset by its row identifier.
func (s *Store) GetAssetByID(ctx context.Context, id int64) (*Asset, error) {
	row := s.queryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset id %d: %w", id, err)
	}
	return asset, nil
}

// ListAssets returns all assets of a case ordered by sort_order then id.
func (s *Store) ListAssets(ctx context.Context, caseID string) ([]*Asset, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE case_id = ? ORDER BY sort_order, id",
		caseID)
	if err != nil {
		return nil, fmt.Errorf("list assets for %s: %w", caseID, err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// ClaimPendingAssets atomically moves up to limit caption-pending assets into
// in-progress. Only assets that already carry a blob URL are eligible: the
// captioner needs a published image to look at. Same conditional-update claim
// discipline as cases.
func (s *Store) ClaimPendingAssets(ctx context.Context, limit int) ([]*Asset, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.queryContext(ctx,
		`SELECT id FROM assets
         WHERE ai_processed = ? AND blob_url IS NOT NULL AND blob_url != ''
         ORDER BY id LIMIT ?`,
		int(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list asset claim candidates: %w", err)
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

	var claimed []*Asset
	now := nowTimestamp()
	for _, id := range ids {
		res, err := s.execWithRetry(ctx,
			`UPDATE assets SET ai_processed = ?, error_message = NULL, updated_at = ?
             WHERE id = ? AND ai_processed = ?`,
			int(StatusInProgress), now, id, int(StatusPending))
		if err != nil {
			return claimed, fmt.Errorf("claim asset id %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, fmt.Errorf("claim asset id %d: rows affected: %w", id, err)
		}
		if affected != 1 {
			continue
		}
		asset, err := s.GetAssetByID(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, asset)
	}
	return claimed, nil
}

// ReleaseAsset returns an in-progress asset to pending for a later retry.
func (s *Store) ReleaseAsset(ctx context.Context, id int64, message string) error {
	err := s.execWithoutResultRetry(ctx,
		`UPDATE assets SET ai_processed = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND ai_processed = ?`,
		int(StatusPending), nullableString(message), nowTimestamp(), id, int(StatusInProgress))
	if err != nil {
		return fmt.Errorf("release asset id %d: %w", id, err)
	}
	return nil
}

// RecordAssetPublished stores the public blob URL and measured image
// dimensions after a successful upload.
func (s *Store) RecordAssetPublished(ctx context.Context, id int64, blobURL string, width, height int, fileSize int64) error {
	if blobURL == "" {
		return fmt.Errorf("record published asset id %d: blob url is empty", id)
	}
	err := s.execWithoutResultRetry(ctx,
		`UPDATE assets SET blob_url = ?, width = ?, height = ?, file_size = ?, updated_at = ?
         WHERE id = ?`,
		blobURL, width, height, fileSize, nowTimestamp(), id)
	if err != nil {
		return fmt.Errorf("record published asset id %d: %w", id, err)
	}
	return nil
}

// RecordAssetCaption writes the localized text and moves the asset to done.
// ai_processed advances forward only: a finished asset is never rewound, and
// the write applies only while the asset is held in progress.
func (s *Store) RecordAssetCaption(ctx context.Context, id int64, altText, caption string) error {
	if altText == "" || caption == "" {
		return fmt.Errorf("record caption for asset id %d: alt text and caption must be non-empty", id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE assets SET alt_text = ?, caption = ?, ai_processed = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND ai_processed = ?`,
		altText, caption, int(StatusDone), nowTimestamp(), id, int(StatusInProgress))
	if err != nil {
		return fmt.Errorf("record caption for asset id %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record caption for asset id %d: rows affected: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("record caption for asset id %d: not in progress", id)
	}
	return nil
}

// FailAsset parks an in-progress asset on a terminal failure code. A done
// asset is never overwritten.
func (s *Store) FailAsset(ctx context.Context, id int64, code Status, message string) error {
	if !code.Terminal() {
		return fmt.Errorf("fail asset id %d: %d is not a failure code", id, int(code))
	}
	err := s.execWithoutResultRetry(ctx,
		`UPDATE assets SET ai_processed = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND ai_processed != ?`,
		int(code), nullableString(message), nowTimestamp(), id, int(StatusDone))
	if err != nil {
		return fmt.Errorf("fail asset id %d: %w", id, err)
	}
	return nil
}

// DoneAssetCount counts assets of the case that satisfy the completion
// invariant: done status, published blob URL, and non-empty localized text.
func (s *Store) DoneAssetCount(ctx context.Context, caseID string) (int, error) {
	var count int
	err := s.queryRowContext(ctx,
		`SELECT COUNT(1) FROM assets
         WHERE case_id = ? AND ai_processed = ?
           AND blob_url IS NOT NULL AND blob_url != ''
           AND alt_text IS NOT NULL AND alt_text != ''
           AND caption IS NOT NULL AND caption != ''`,
		caseID, int(StatusDone)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count done assets for %s: %w", caseID, err)
	}
	return count, nil
}
