package store

import (
	"context"
	"fmt"
	"strings"
)

// EnsureTag inserts a tag if it does not exist and returns its id.
func (s *Store) EnsureTag(ctx context.Context, name string) (int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("ensure tag: name is empty")
	}
	if err := s.execWithoutResultRetry(ctx,
		"INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return 0, fmt.Errorf("ensure tag %q: %w", name, err)
	}
	var id int64
	if err := s.queryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}
	return id, nil
}

// TagCase associates a tag with a case. Safe to repeat.
func (s *Store) TagCase(ctx context.Context, caseID, name string) error {
	tagID, err := s.EnsureTag(ctx, name)
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(ctx,
		"INSERT INTO tag_relations (case_id, tag_id) VALUES (?, ?) ON CONFLICT (case_id, tag_id) DO NOTHING",
		caseID, tagID); err != nil {
		return fmt.Errorf("tag case %s with %q: %w", caseID, name, err)
	}
	return nil
}

// ListCaseTags returns the tag names attached to a case, sorted.
func (s *Store) ListCaseTags(ctx context.Context, caseID string) ([]string, error) {
	rows, err := s.queryContext(ctx,
		`SELECT t.name FROM tags t
         JOIN tag_relations r ON r.tag_id = t.id
         WHERE r.case_id = ? ORDER BY t.name`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list tags for %s: %w", caseID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
