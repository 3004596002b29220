// Package logging configures slog handlers and shared attribute helpers
// used across the caseflow daemon and CLI.
package logging
