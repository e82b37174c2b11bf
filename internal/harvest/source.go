package harvest

import (
	"context"

	"github.com/ocabr/observatory/internal/domain"
)

// CursorStart is the sentinel value that begins a cursor-paginated
// harvest. Sources translate it to their own start token.
const CursorStart = "*"

// Page is one batch of raw records pulled from an upstream source.
// NextCursor is empty once the source is exhausted.
type Page struct {
	Articles     []*domain.RawArticle
	Institutions []*domain.RawInstitution
	Journals     []*domain.RawJournal
	NextCursor   string
}

// Len returns the number of records on the page.
func (p *Page) Len() int {
	return len(p.Articles) + len(p.Institutions) + len(p.Journals)
}

// Source streams pages of raw records from one upstream provider.
//
// FetchPage is resumable: callers persist the returned NextCursor and
// may re-fetch from it after an interruption. Pages are idempotent on
// the raw store's (specific_id, source) key, so replaying a page is
// harmless.
type Source interface {
	// Name identifies the provider for run bookkeeping and metrics.
	Name() domain.SourceName

	// FetchPage retrieves the page at cursor. Pass CursorStart for the
	// first page.
	FetchPage(ctx context.Context, cursor string) (*Page, error)
}
