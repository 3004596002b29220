// Package ingest loads scraped case files into the status store. New cases
// enter at pending; re-imports refresh descriptive fields without touching
// pipeline state.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"caseflow/internal/logging"
	"caseflow/internal/services"
	"caseflow/internal/store"
)

// defaultURLPath is the destination prefix for published case images.
const defaultURLPath = "cases"

// Record is one scraped case as produced by the scraper export.
type Record struct {
	CaseID   string `json:"case_id"`
	CaseURL  string `json:"case_url"`
	Title    string `json:"case_title"`
	InfoHTML string `json:"scraped_content"`
	URLPath  string `json:"url_path"`
}

// Importer writes scraped case files into the store.
type Importer struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds an importer.
func New(st *store.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{store: st, logger: logging.WithComponent(logger, "ingest")}
}

// Summary reports what an import pass touched.
type Summary struct {
	Files int
	Cases int
}

// ImportDir imports every .json and .html file directly under dir.
func (i *Importer) ImportDir(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read import dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".html", ".htm":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	summary := Summary{}
	for _, name := range names {
		count, err := i.ImportFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return summary, fmt.Errorf("import %s: %w", name, err)
		}
		summary.Files++
		summary.Cases += count
	}
	return summary, nil
}

// ImportFile imports a single scraped file and returns how many cases it
// carried.
func (i *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		records, err = parseJSON(data)
	case ".html", ".htm":
		records, err = parseIndexHTML(string(data))
	default:
		return 0, services.Wrap(services.ErrValidation, "ingest", "import", "unsupported file type "+filepath.Ext(path), nil)
	}
	if err != nil {
		return 0, err
	}

	for _, record := range records {
		if err := i.importRecord(ctx, record); err != nil {
			return 0, err
		}
	}
	i.logger.Info("file imported", logging.String("file", filepath.Base(path)), logging.Int("cases", len(records)))
	return len(records), nil
}

func (i *Importer) importRecord(ctx context.Context, record Record) error {
	record.CaseID = strings.TrimSpace(record.CaseID)
	if record.CaseID == "" {
		return services.Wrap(services.ErrValidation, "ingest", "import", "record missing case_id", nil)
	}
	urlPath := strings.Trim(strings.TrimSpace(record.URLPath), "/")
	if urlPath == "" {
		urlPath = defaultURLPath
	}
	_, err := i.store.UpsertCase(ctx, &store.Case{
		CaseID:   record.CaseID,
		Title:    strings.TrimSpace(record.Title),
		URLPath:  urlPath,
		InfoHTML: record.InfoHTML,
	})
	return err
}

// parseJSON accepts either a single record or an array of records.
func parseJSON(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var single Record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "parse", "malformed case json", err)
	}
	return []Record{single}, nil
}

// parseIndexHTML extracts case links from a scraped index page. The case id
// is the last path segment of each /case/ link and the link text is the
// title.
func parseIndexHTML(html string) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "parse", "malformed index html", err)
	}

	var records []Record
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		caseID := caseIDFromURL(href)
		if caseID == "" {
			return
		}
		if _, dup := seen[caseID]; dup {
			return
		}
		seen[caseID] = struct{}{}
		title := strings.TrimSpace(sel.Text())
		records = append(records, Record{
			CaseID:  caseID,
			CaseURL: href,
			Title:   title,
			InfoHTML: fmt.Sprintf("<h1>%s</h1>\n<p>Imported from <a href=%q>%s</a>; full page pending scrape.</p>",
				title, href, href),
		})
	})
	return records, nil
}

func caseIDFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != "case" {
		return ""
	}
	return strings.TrimSpace(segments[len(segments)-1])
}
