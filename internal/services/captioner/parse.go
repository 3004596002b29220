package captioner

import (
	"fmt"
	"strings"
)

// parseAnnotations interprets the pipe-separated response lines. Every
// requested image must be covered exactly once with non-empty text; partial
// or mangled answers are rejected whole so the stage can retry or park the
// assets consistently.
func parseAnnotations(content string, images []ImageInput) ([]Annotation, error) {
	expected := make(map[string]struct{}, len(images))
	for _, img := range images {
		expected[img.Filename] = struct{}{}
	}

	results := make(map[string]Annotation, len(images))
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %q has %d fields, want 3", ErrBadPayload, line, len(fields))
		}
		filename := strings.TrimSpace(fields[0])
		altText := strings.TrimSpace(fields[1])
		caption := strings.TrimSpace(fields[2])
		if _, ok := expected[filename]; !ok {
			return nil, fmt.Errorf("%w: unexpected filename %q", ErrBadPayload, filename)
		}
		if altText == "" || caption == "" {
			return nil, fmt.Errorf("%w: empty text for %q", ErrBadPayload, filename)
		}
		if _, dup := results[filename]; dup {
			return nil, fmt.Errorf("%w: duplicate line for %q", ErrBadPayload, filename)
		}
		results[filename] = Annotation{Filename: filename, AltText: altText, Caption: caption}
	}

	annotations := make([]Annotation, 0, len(images))
	for _, img := range images {
		annotation, ok := results[img.Filename]
		if !ok {
			return nil, fmt.Errorf("%w: missing line for %q", ErrBadPayload, img.Filename)
		}
		annotations = append(annotations, annotation)
	}
	return annotations, nil
}
