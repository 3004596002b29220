package store

import (
	"database/sql"
	"errors"
	"time"
)

const caseColumns = "id, case_id, title, url_path, info_html, convert_status, image_count, error_message, last_heartbeat, created_at, updated_at"

const assetColumns = "id, case_id, filename, source_url, blob_url, alt_text, caption, ai_processed, is_primary, sort_order, width, height, file_size, error_message, created_at, updated_at"

func scanCase(scanner interface{ Scan(dest ...any) error }) (*Case, error) {
	var (
		id           int64
		caseID       string
		title        sql.NullString
		urlPath      sql.NullString
		infoHTML     sql.NullString
		status       int64
		imageCount   int64
		errorMessage sql.NullString
		heartbeatRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&caseID,
		&title,
		&urlPath,
		&infoHTML,
		&status,
		&imageCount,
		&errorMessage,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Case{
		ID:            id,
		CaseID:        caseID,
		Title:         title.String,
		URLPath:       urlPath.String,
		InfoHTML:      infoHTML.String,
		ConvertStatus: Status(status),
		ImageCount:    int(imageCount),
		ErrorMessage:  errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			record.LastHeartbeat = &heartbeat
		}
	}
	return record, nil
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id           int64
		caseID       string
		filename     string
		sourceURL    sql.NullString
		blobURL      sql.NullString
		altText      sql.NullString
		caption      sql.NullString
		aiProcessed  int64
		isPrimary    int64
		sortOrder    int64
		width        int64
		height       int64
		fileSize     int64
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&caseID,
		&filename,
		&sourceURL,
		&blobURL,
		&altText,
		&caption,
		&aiProcessed,
		&isPrimary,
		&sortOrder,
		&width,
		&height,
		&fileSize,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:           id,
		CaseID:       caseID,
		Filename:     filename,
		SourceURL:    sourceURL.String,
		BlobURL:      blobURL.String,
		AltText:      altText.String,
		Caption:      caption.String,
		AIProcessed:  Status(aiProcessed),
		IsPrimary:    isPrimary != 0,
		SortOrder:    int(sortOrder),
		Width:        int(width),
		Height:       int(height),
		FileSize:     fileSize,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		asset.UpdatedAt = updated
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

const timestampLayout = time.RFC3339Nano

func nowTimestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
