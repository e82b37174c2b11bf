package indicator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/artifact"
	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

// VersionStore is the indicator persistence surface the generator
// needs. The production implementation wraps CreateVersion in a
// database transaction so the supersession flip commits atomically.
type VersionStore interface {
	CreateVersion(ctx context.Context, indicator *domain.Indicator) (*domain.Indicator, error)
	GetCurrent(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) (*domain.Indicator, error)
}

// Params selects the population and breakdown of one indicator run.
type Params struct {
	Filters   FilterSpec
	Groupings GroupingSpec

	// Scope overrides the scope derived from the filters (optional).
	Scope domain.Scope
}

// Generator produces frequency and evolution indicators.
type Generator struct {
	directories  repository.DirectoryRepository
	articles     repository.ArticleRepository
	institutions repository.InstitutionRepository
	geography    repository.GeographyRepository
	lookups      repository.LookupRepository
	versions     VersionStore
	store        artifact.Store

	minItems    int
	windowYears int

	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewGenerator creates a generator with the configured thresholds.
func NewGenerator(
	directories repository.DirectoryRepository,
	articles repository.ArticleRepository,
	institutions repository.InstitutionRepository,
	geography repository.GeographyRepository,
	lookups repository.LookupRepository,
	versions VersionStore,
	store artifact.Store,
	cfg config.IndicatorsConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Generator {
	minItems := cfg.MinItems
	if minItems <= 0 {
		minItems = 10
	}
	windowYears := cfg.EvolutionWindowYears
	if windowYears <= 0 {
		windowYears = 10
	}
	return &Generator{
		directories:  directories,
		articles:     articles,
		institutions: institutions,
		geography:    geography,
		lookups:      lookups,
		versions:     versions,
		store:        store,
		minItems:     minItems,
		windowYears:  windowYears,
		logger:       logger.With().Str("component", "indicator").Logger(),
		metrics:      metrics,
		now:          time.Now,
	}
}

// GenerateFrequency counts published directory records across the
// enabled dimensions. Returns (nil, nil) when the population is below
// the minimum item threshold.
func (g *Generator) GenerateFrequency(ctx context.Context, params Params) (*domain.Indicator, error) {
	if params.Groupings.Count() == 0 {
		return nil, domain.NewValidationError("groupings", "at least one grouping dimension is required")
	}

	started := g.now()
	ref, err := loadRefData(ctx, g.lookups, g.institutions, g.geography)
	if err != nil {
		return nil, err
	}

	rows, err := g.collectFrequencyRows(ctx, params.Filters, ref)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Directory records (%s) by %s", params.Filters.Label(), dimensionsLabel(params.Groupings))
	indicator := g.buildIndicator(title, params, domain.MeasurementFrequency, ref)
	indicator.StartDateYear = params.Filters.BeginYear
	indicator.EndDateYear = params.Filters.EndYear

	return g.finalize(ctx, indicator, rows, params.Groupings, started)
}

// GenerateEvolution follows article counts over the year window.
// Returns (nil, nil) when the population is below the minimum item
// threshold.
func (g *Generator) GenerateEvolution(ctx context.Context, params Params) (*domain.Indicator, error) {
	if params.Groupings.Count() == 0 {
		return nil, domain.NewValidationError("groupings", "at least one grouping dimension is required")
	}

	started := g.now()
	ref, err := loadRefData(ctx, g.lookups, g.institutions, g.geography)
	if err != nil {
		return nil, err
	}

	begin, end := g.evolutionWindow(params.Filters, started)
	rows, err := g.collectEvolutionRows(ctx, begin, end, ref)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Articles %d-%d by %s", begin, end, dimensionsLabel(params.Groupings))
	indicator := g.buildIndicator(title, params, domain.MeasurementEvolution, ref)
	indicator.StartDateYear = &begin
	indicator.EndDateYear = &end

	return g.finalize(ctx, indicator, rows, params.Groupings, started)
}

func (g *Generator) buildIndicator(title string, params Params, measurement domain.Measurement, ref *refData) *domain.Indicator {
	indicator := &domain.Indicator{
		Title:          title,
		Code:           domain.Slugify(title),
		Classification: dimensionsLabel(params.Groupings),
		Scope:          params.Scope,
		Measurement:    measurement,
		Validity:       domain.ValidityCurrent,
		Status:         domain.RecordStatusPublished,
	}
	if indicator.Scope == "" {
		indicator.Scope = deriveScope(params.Filters)
	}
	if params.Filters.ActionName != "" {
		if action := ref.actionByName(params.Filters.ActionName); action != nil {
			id := action.ID
			indicator.ActionID = &id
		}
	}
	return indicator
}

// finalize summarizes the rows, enforces the item threshold, writes the
// raw-data archive and persists the new version.
func (g *Generator) finalize(ctx context.Context, indicator *domain.Indicator, rows []row, groupings GroupingSpec, started time.Time) (*domain.Indicator, error) {
	summarized := summarize(rows, groupings)
	if len(summarized.Items) < g.minItems {
		if g.metrics != nil {
			g.metrics.RecordIndicatorSkipped(string(indicator.Measurement))
		}
		g.logger.Info().
			Str("title", indicator.Title).
			Int("items", len(summarized.Items)).
			Int("min_items", g.minItems).
			Msg("not enough data for indicator")
		return nil, nil
	}
	indicator.Summarized = summarized

	seq := 1
	previous, err := g.versions.GetCurrent(ctx, domain.ChainKeyOf(indicator), indicator.Measurement)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up current version: %w", err)
	}
	if previous != nil {
		seq = previous.Seq + 1
	}

	path, err := g.writeRawData(ctx, indicator.Title, started, seq, summarized.Items)
	if err != nil {
		// The indicator row is still persisted; a later consistency
		// check flags versions without raw data.
		g.logger.Error().Err(err).Str("title", indicator.Title).Msg("failed to persist raw data archive")
	}
	indicator.RawDataPath = path

	created, err := g.versions.CreateVersion(ctx, indicator)
	if err != nil {
		return nil, fmt.Errorf("persisting indicator: %w", err)
	}

	if g.metrics != nil {
		g.metrics.RecordIndicatorGenerated(string(created.Measurement), g.now().Sub(started).Seconds())
	}
	g.logger.Info().
		Str("title", created.Title).
		Str("code", created.Code).
		Int("seq", created.Seq).
		Int("items", len(summarized.Items)).
		Msg("indicator generated")
	return created, nil
}

func (g *Generator) writeRawData(ctx context.Context, title string, at time.Time, seq int, items []map[string]any) (string, error) {
	records := make([]any, len(items))
	for i, item := range items {
		records[i] = item
	}

	var buf bytes.Buffer
	name := domain.RawDataFileName(title, at, seq)
	if err := artifact.WriteArchive(&buf, name, records); err != nil {
		return "", err
	}
	return g.store.Save(ctx, name, &buf)
}

// summarize folds rows into the rendering payload. For every enabled
// dimension each row contributes one count per dimension value, split
// into stacks by the highest-resolution other enabled dimension (or
// the row axis when the dimension stands alone).
func summarize(rows []row, groupings GroupingSpec) *domain.Summarized {
	type pointKey struct {
		x, y, stack string
	}
	counts := make(map[pointKey]int)

	for _, dim := range groupings.Dimensions() {
		stackDim := groupings.stackDimension(dim)
		for _, r := range rows {
			for _, value := range r.dimensionValues(dim) {
				stacks := []string{r.axis}
				if stackDim != "" {
					stacks = r.dimensionValues(stackDim)
				}
				for _, stack := range stacks {
					counts[pointKey{x: value, y: r.axis, stack: stack}]++
				}
			}
		}
	}

	points := make([]domain.GraphicPoint, 0, len(counts))
	for key, count := range counts {
		points = append(points, domain.GraphicPoint{X: key.x, Y: key.y, Count: count, Stack: key.stack})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].X != points[j].X {
			return points[i].X < points[j].X
		}
		if points[i].Y != points[j].Y {
			return points[i].Y < points[j].Y
		}
		return points[i].Stack < points[j].Stack
	})

	items := make([]map[string]any, 0, len(rows))
	headerSet := make(map[string]bool)
	for _, r := range rows {
		items = append(items, r.item)
		for key := range r.item {
			headerSet[key] = true
		}
	}
	header := make([]string, 0, len(headerSet))
	for key := range headerSet {
		header = append(header, key)
	}
	sort.Strings(header)

	return &domain.Summarized{
		Items:       items,
		GraphicData: points,
		TableHeader: header,
		Version:     domain.SummarizedVersion,
	}
}

func dimensionsLabel(groupings GroupingSpec) string {
	return strings.Join(groupings.Dimensions(), ", ")
}

// deriveScope infers the spatial reach from the narrowest filter set.
func deriveScope(spec FilterSpec) domain.Scope {
	switch {
	case spec.InstitutionName != "":
		return domain.ScopeInstitutional
	case spec.StateCode != "":
		return domain.ScopeStatewide
	case spec.StateRegion != "":
		return domain.ScopeRegional
	default:
		return domain.ScopeNational
	}
}
