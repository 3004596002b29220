package store

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncCounts reports how many rows a sync run copied.
type SyncCounts struct {
	Cases  int64
	Assets int64
	Tags   int64
}

// Sync copies cases, assets, and tags from src to dst in id-ordered chunks.
// Every row is written as an upsert carrying full pipeline state, so an
// interrupted run can simply be restarted and converges on the same result.
// startOffset skips already-copied case chunks on resume.
func Sync(ctx context.Context, src, dst *Store, chunkSize int, startOffset int, logger *slog.Logger) (SyncCounts, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var counts SyncCounts

	for offset := startOffset; ; offset += chunkSize {
		cases, err := src.listCaseChunk(ctx, chunkSize, offset)
		if err != nil {
			return counts, err
		}
		if len(cases) == 0 {
			break
		}
		for _, record := range cases {
			if err := dst.replicateCase(ctx, record); err != nil {
				return counts, err
			}
			counts.Cases++
		}
		logger.Info("synced case chunk", "offset", offset, "size", len(cases))
	}

	for offset := 0; ; offset += chunkSize {
		assets, err := src.listAssetChunk(ctx, chunkSize, offset)
		if err != nil {
			return counts, err
		}
		if len(assets) == 0 {
			break
		}
		for _, asset := range assets {
			if err := dst.replicateAsset(ctx, asset); err != nil {
				return counts, err
			}
			counts.Assets++
		}
		logger.Info("synced asset chunk", "offset", offset, "size", len(assets))
	}

	copied, err := copyTags(ctx, src, dst)
	if err != nil {
		return counts, err
	}
	counts.Tags = copied

	return counts, nil
}

func (s *Store) listCaseChunk(ctx context.Context, limit, offset int) ([]*Case, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+caseColumns+" FROM cases ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list case chunk: %w", err)
	}
	defer rows.Close()

	var records []*Case
	for rows.Next() {
		record, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case chunk: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) listAssetChunk(ctx context.Context, limit, offset int) ([]*Asset, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+assetColumns+" FROM assets ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list asset chunk: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset chunk: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// replicateCase upserts a full case row including pipeline state. Only used
// by Sync; normal imports go through UpsertCase which preserves state.
func (s *Store) replicateCase(ctx context.Context, record *Case) error {
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO cases (case_id, title, url_path, info_html, convert_status, image_count, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (case_id) DO UPDATE SET
             title = excluded.title,
             url_path = excluded.url_path,
             info_html = excluded.info_html,
             convert_status = excluded.convert_status,
             image_count = excluded.image_count,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		record.CaseID,
		nullableString(record.Title),
		nullableString(record.URLPath),
		nullableString(record.InfoHTML),
		int(record.ConvertStatus),
		record.ImageCount,
		nullableString(record.ErrorMessage),
		record.CreatedAt.UTC().Format(timestampLayout),
		record.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("replicate case %s: %w", record.CaseID, err)
	}
	return nil
}

func (s *Store) replicateAsset(ctx context.Context, asset *Asset) error {
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO assets (case_id, filename, source_url, blob_url, alt_text, caption, ai_processed, is_primary, sort_order, width, height, file_size, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (case_id, filename) DO UPDATE SET
             source_url = excluded.source_url,
             blob_url = excluded.blob_url,
             alt_text = excluded.alt_text,
             caption = excluded.caption,
             ai_processed = excluded.ai_processed,
             is_primary = excluded.is_primary,
             sort_order = excluded.sort_order,
             width = excluded.width,
             height = excluded.height,
             file_size = excluded.file_size,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		asset.CaseID,
		asset.Filename,
		nullableString(asset.SourceURL),
		nullableString(asset.BlobURL),
		nullableString(asset.AltText),
		nullableString(asset.Caption),
		int(asset.AIProcessed),
		boolToInt(asset.IsPrimary),
		asset.SortOrder,
		asset.Width,
		asset.Height,
		asset.FileSize,
		nullableString(asset.ErrorMessage),
		asset.CreatedAt.UTC().Format(timestampLayout),
		asset.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("replicate asset %s/%s: %w", asset.CaseID, asset.Filename, err)
	}
	return nil
}

func copyTags(ctx context.Context, src, dst *Store) (int64, error) {
	rows, err := src.queryContext(ctx,
		`SELECT r.case_id, t.name FROM tag_relations r JOIN tags t ON t.id = r.tag_id`)
	if err != nil {
		return 0, fmt.Errorf("list tag relations: %w", err)
	}
	defer rows.Close()

	type relation struct{ caseID, name string }
	var relations []relation
	for rows.Next() {
		var rel relation
		if err := rows.Scan(&rel.caseID, &rel.name); err != nil {
			return 0, fmt.Errorf("scan tag relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var copied int64
	for _, rel := range relations {
		if err := dst.TagCase(ctx, rel.caseID, rel.name); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
