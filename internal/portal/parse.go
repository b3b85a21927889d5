package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/posting"
)

// ParseSnapshot extracts the job rows from a rendered page. A page with no
// rows only counts as empty when the empty-state indicator is present;
// otherwise the page is treated as not ready and the error is Recoverable.
func ParseSnapshot(html string, cfg Config) (posting.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return posting.Snapshot{}, failure.NewRecoverable("list_postings", err, "failed to parse page HTML")
	}

	emptyConfirmed := hasEmptyState(doc, cfg)

	table := doc.Find(idSelector(cfg.TableID))
	if table.Length() == 0 {
		if emptyConfirmed {
			return posting.Snapshot{Postings: posting.NewSet(), EmptyConfirmed: true}, nil
		}
		return posting.Snapshot{}, failure.NewRecoverable("list_postings", nil, "job table %q not found on page", cfg.TableID)
	}

	var rows []posting.Posting
	table.First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			// header row
			return
		}
		fields := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			fields = append(fields, cleanWhitespace(cell.Text()))
		})
		rows = append(rows, posting.New(fields...).AtRow(len(rows)))
	})

	return posting.Snapshot{Postings: posting.NewSet(rows...), EmptyConfirmed: len(rows) == 0 && emptyConfirmed}, nil
}

func hasEmptyState(doc *goquery.Document, cfg Config) bool {
	if cfg.EmptyStateSelector == "" {
		return false
	}
	want := strings.ToLower(cfg.EmptyStateText)
	found := false
	doc.Find(cfg.EmptyStateSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), want) {
			found = true
			return false
		}
		return true
	})
	return found
}

// cleanWhitespace collapses runs of whitespace inside a cell.
func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
