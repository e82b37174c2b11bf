// Package promote builds canonical entities from raw snapshots.
//
// Promotion is the second half of a harvest: raw rows stored by the
// pagination loop are decoded and upserted into the canonical store in
// batches. Per-record failures are counted and logged; a batch never
// aborts because one record is broken.
package promote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest/openalex"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

const defaultLoopSize = 1000

// Options bounds one promotion pass.
type Options struct {
	// Update re-promotes raw articles whose canonical counterpart
	// already exists. When false, existing articles are skipped.
	Update bool
	// Since restricts the pass to raw rows updated after this time.
	Since *time.Time
	// LoopSize is the batch size. Zero uses the default of 1000.
	LoopSize int
}

// Stats summarizes one promotion pass.
type Stats struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
}

// Promoter turns raw snapshots into canonical entities.
type Promoter struct {
	raws         repository.RawRepository
	articles     repository.ArticleRepository
	journals     repository.JournalRepository
	contributors repository.ContributorRepository
	institutions repository.InstitutionRepository
	lookups      repository.LookupRepository
	events       ArticleEvents
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// ArticleEvents publishes article mutations for detached consumers.
type ArticleEvents interface {
	PublishArticleUpserted(ctx context.Context, article *domain.Article) error
}

// NewPromoter creates a promoter over the canonical store.
func NewPromoter(
	raws repository.RawRepository,
	articles repository.ArticleRepository,
	journals repository.JournalRepository,
	contributors repository.ContributorRepository,
	institutions repository.InstitutionRepository,
	lookups repository.LookupRepository,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Promoter {
	return &Promoter{
		raws:         raws,
		articles:     articles,
		journals:     journals,
		contributors: contributors,
		institutions: institutions,
		lookups:      lookups,
		logger:       logger.With().Str("component", "promoter").Logger(),
		metrics:      metrics,
	}
}

// WithEvents attaches a mutation event publisher. Publish failures are
// logged, never surfaced; the canonical write already succeeded.
func (p *Promoter) WithEvents(events ArticleEvents) *Promoter {
	p.events = events
	return p
}

// PromoteArticles walks raw OpenAlex articles in batches and promotes
// each into a canonical Article with its journal, contributors,
// affiliations, concepts and license attached.
func (p *Promoter) PromoteArticles(ctx context.Context, opts Options) (*Stats, error) {
	loopSize := opts.LoopSize
	if loopSize <= 0 {
		loopSize = defaultLoopSize
	}

	source, err := p.lookups.GetOrCreateSource(ctx, domain.SourceOpenAlex)
	if err != nil {
		return nil, fmt.Errorf("resolving source row: %w", err)
	}

	stats := &Stats{}
	rawSource := domain.SourceOpenAlex
	for offset := 0; ; offset += loopSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batchStart := time.Now()
		raws, _, err := p.raws.ListArticles(ctx, repository.RawArticleFilter{
			Source:       &rawSource,
			UpdatedAfter: opts.Since,
			Limit:        loopSize,
			Offset:       offset,
		})
		if err != nil {
			return stats, fmt.Errorf("listing raw articles at offset %d: %w", offset, err)
		}
		if len(raws) == 0 {
			break
		}

		for _, raw := range raws {
			stats.Processed++
			outcome, err := p.promoteArticle(ctx, raw, source.ID, opts.Update)
			if err != nil {
				stats.Failed++
				logger := observability.WithRecordContext(p.logger, raw.SpecificID, raw.DOI)
				logger.Error().Err(err).Msg("failed to promote raw article")
				continue
			}
			switch outcome {
			case domain.OutcomeCreated:
				stats.Created++
			case domain.OutcomeUpdated:
				stats.Updated++
			default:
				stats.Skipped++
			}
		}

		if p.metrics != nil {
			p.metrics.RecordPromotionBatch(time.Since(batchStart).Seconds())
		}
		if len(raws) < loopSize {
			break
		}
	}

	p.logger.Info().
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("article promotion finished")
	return stats, nil
}

// promoteArticle promotes a single raw article. Returns the empty
// outcome when the article was skipped.
func (p *Promoter) promoteArticle(ctx context.Context, raw *domain.RawArticle, sourceID uuid.UUID, update bool) (domain.UpsertOutcome, error) {
	var work openalex.Work
	if err := json.Unmarshal(raw.Payload, &work); err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}

	doi := openalex.NormalizeDOI(work.DOI)
	title := work.Name()
	if doi == "" && title == "" {
		return "", fmt.Errorf("work has neither doi nor title")
	}

	if !update {
		var err error
		if doi != "" {
			_, err = p.articles.GetByDOI(ctx, doi)
		} else {
			_, err = p.articles.GetByTitle(ctx, title)
		}
		if err == nil {
			return "", nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("checking existing article: %w", err)
		}
	}

	article := &domain.Article{
		Title:            title,
		DOI:              doi,
		Year:             raw.Year,
		IsOA:             work.OpenAccess.IsOA,
		OpenAccessStatus: domain.OpenAccessStatus(work.OpenAccess.OAStatus),
		APC:              apcFlag(work.APCList),
	}

	if journalID, err := p.promoteJournal(ctx, work.PrimaryLocation); err != nil {
		p.logger.Warn().Err(err).Str("work_id", work.ID).Msg("journal upsert failed, promoting article without it")
	} else {
		article.JournalID = journalID
	}

	if work.PrimaryLocation != nil && work.PrimaryLocation.License != "" {
		license, err := p.lookups.GetOrCreateLicense(ctx, &domain.License{Name: work.PrimaryLocation.License})
		if err != nil {
			p.logger.Warn().Err(err).Str("work_id", work.ID).Msg("license upsert failed")
		} else {
			article.LicenseID = &license.ID
		}
	}

	for _, authorship := range work.Authorships {
		contributorID, err := p.promoteContributor(ctx, authorship)
		if err != nil {
			p.logger.Warn().Err(err).Str("work_id", work.ID).Str("author", authorship.Author.DisplayName).Msg("contributor upsert failed")
			continue
		}
		article.ContributorIDs = append(article.ContributorIDs, *contributorID)
	}

	for _, ref := range work.Concepts {
		concept, err := p.lookups.GetConceptBySpecificID(ctx, strings.ToLower(ref.ID))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				p.logger.Debug().Str("concept_id", ref.ID).Msg("unknown concept, skipping")
				continue
			}
			return "", fmt.Errorf("looking up concept %s: %w", ref.ID, err)
		}
		article.ConceptIDs = append(article.ConceptIDs, concept.ID)
	}

	article.SourceIDs = []uuid.UUID{sourceID}

	saved, outcome, err := p.articles.CreateOrUpdate(ctx, article)
	if err != nil {
		return "", fmt.Errorf("upserting article: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPromotion("article", string(outcome))
	}
	if p.events != nil {
		if err := p.events.PublishArticleUpserted(ctx, saved); err != nil {
			p.logger.Warn().Err(err).Str("article_id", saved.ID.String()).Msg("article event publish failed")
		}
	}
	return outcome, nil
}

func apcFlag(apc *openalex.APC) string {
	if apc != nil {
		return "Yes"
	}
	return "No"
}

// promoteJournal upserts the venue of a work's primary location.
// Returns nil when the work has no venue.
func (p *Promoter) promoteJournal(ctx context.Context, loc *openalex.Location) (*uuid.UUID, error) {
	if loc == nil || loc.Source == nil {
		return nil, nil
	}
	venue := loc.Source
	if venue.ISSNL == "" && venue.DisplayName == "" {
		return nil, nil
	}

	journal, outcome, err := p.journals.CreateOrUpdate(ctx, &domain.Journal{
		ISSNL:    venue.ISSNL,
		ISSNs:    venue.ISSN,
		Name:     venue.DisplayName,
		IsInDOAJ: venue.IsInDOAJ,
	})
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordPromotion("journal", string(outcome))
	}
	return &journal.ID, nil
}

// promoteContributor upserts one authorship's contributor, its
// affiliation string and its per-source institution references.
func (p *Promoter) promoteContributor(ctx context.Context, authorship openalex.Authorship) (*uuid.UUID, error) {
	given, family := SplitDisplayName(authorship.Author.DisplayName)
	if given == "" && family == "" {
		return nil, fmt.Errorf("authorship has no display name")
	}

	contributor := &domain.Contributor{Given: given, Family: family}
	if orcid := openalex.NormalizeORCID(authorship.Author.ORCID); orcid != "" {
		contributor.ORCID = &orcid
	}

	affiliationsString := strings.Join(authorship.RawAffiliationStrings, "|")
	if affiliationsString != "" {
		contributor.AffiliationsString = &affiliationsString
	}

	contributor, outcome, err := p.contributors.CreateOrUpdate(ctx, contributor)
	if err != nil {
		return nil, fmt.Errorf("upserting contributor: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPromotion("contributor", string(outcome))
	}

	if affiliationsString != "" {
		affiliation, _, err := p.contributors.UpsertAffiliation(ctx, &domain.Affiliation{Name: affiliationsString})
		if err != nil {
			return nil, fmt.Errorf("upserting affiliation: %w", err)
		}
		if err := p.contributors.LinkAffiliation(ctx, contributor.ID, affiliation.ID); err != nil {
			return nil, fmt.Errorf("linking affiliation: %w", err)
		}
	}

	for _, inst := range authorship.Institutions {
		if inst.ID == "" {
			continue
		}
		_, _, err := p.institutions.CreateOrUpdateSourceInstitution(ctx, &domain.SourceInstitution{
			SpecificID:  inst.ID,
			Source:      domain.SourceOpenAlex,
			Name:        inst.DisplayName,
			CountryCode: inst.CountryCode,
		})
		if err != nil {
			p.logger.Warn().Err(err).Str("institution_id", inst.ID).Msg("source institution upsert failed")
		}
	}

	return &contributor.ID, nil
}

// SplitDisplayName splits an author display name into given (the first
// token) and family (the remainder).
func SplitDisplayName(displayName string) (given, family string) {
	fields := strings.Fields(displayName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
