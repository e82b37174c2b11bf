package indicator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/artifact"
	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

type fakeDirectories struct {
	records []*domain.DirectoryRecord
}

func (f *fakeDirectories) Create(_ context.Context, record *domain.DirectoryRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDirectories) GetByID(_ context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.NewNotFoundError("directory record", id.String())
}

func (f *fakeDirectories) Update(context.Context, *domain.DirectoryRecord) error { return nil }

func (f *fakeDirectories) UpdateStatus(context.Context, uuid.UUID, domain.RecordStatus, string) error {
	return nil
}

func (f *fakeDirectories) Delete(context.Context, uuid.UUID) error { return nil }

func (f *fakeDirectories) List(_ context.Context, filter repository.DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	var matched []*domain.DirectoryRecord
	for _, r := range f.records {
		if filter.Type != nil && r.Type != *filter.Type {
			continue
		}
		if len(filter.Status) > 0 && !statusIn(r.Status, filter.Status) {
			continue
		}
		if filter.ActionID != nil && (r.ActionID == nil || *r.ActionID != *filter.ActionID) {
			continue
		}
		matched = append(matched, r)
	}
	return window(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func statusIn(status domain.RecordStatus, set []domain.RecordStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type fakeArticles struct {
	articles []*domain.Article
}

func (f *fakeArticles) CreateOrUpdate(context.Context, *domain.Article) (*domain.Article, domain.UpsertOutcome, error) {
	return nil, "", nil
}

func (f *fakeArticles) GetByID(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	return nil, domain.NewNotFoundError("article", id.String())
}

func (f *fakeArticles) GetByDOI(_ context.Context, doi string) (*domain.Article, error) {
	return nil, domain.NewNotFoundError("article", doi)
}

func (f *fakeArticles) GetByTitle(_ context.Context, title string) (*domain.Article, error) {
	return nil, domain.NewNotFoundError("article", title)
}

func (f *fakeArticles) List(_ context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error) {
	var matched []*domain.Article
	for _, a := range f.articles {
		if filter.YearFrom != nil && (a.Year == nil || *a.Year < *filter.YearFrom) {
			continue
		}
		if filter.YearTo != nil && (a.Year == nil || *a.Year > *filter.YearTo) {
			continue
		}
		matched = append(matched, a)
	}
	return window(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

type fakeInstitutions struct {
	institutions []*domain.Institution
}

func (f *fakeInstitutions) CreateOrUpdate(context.Context, *domain.Institution) (*domain.Institution, domain.UpsertOutcome, error) {
	return nil, "", nil
}

func (f *fakeInstitutions) GetByID(_ context.Context, id uuid.UUID) (*domain.Institution, error) {
	return nil, domain.NewNotFoundError("institution", id.String())
}

func (f *fakeInstitutions) List(_ context.Context, filter repository.InstitutionFilter) ([]*domain.Institution, int64, error) {
	return window(f.institutions, filter.Limit, filter.Offset), int64(len(f.institutions)), nil
}

func (f *fakeInstitutions) CreateOrUpdateSourceInstitution(context.Context, *domain.SourceInstitution) (*domain.SourceInstitution, domain.UpsertOutcome, error) {
	return nil, "", nil
}

func (f *fakeInstitutions) GetSourceInstitution(_ context.Context, specificID string, _ domain.SourceName) (*domain.SourceInstitution, error) {
	return nil, domain.NewNotFoundError("source institution", specificID)
}

func (f *fakeInstitutions) ListUnresolvedSourceInstitutions(context.Context, int, int) ([]*domain.SourceInstitution, int64, error) {
	return nil, 0, nil
}

func (f *fakeInstitutions) ResolveSourceInstitution(context.Context, uuid.UUID, uuid.UUID, bool) error {
	return nil
}

type fakeGeography struct {
	locations []*domain.Location
}

func (f *fakeGeography) CreateOrUpdateCountry(context.Context, *domain.Country) (*domain.Country, domain.UpsertOutcome, error) {
	return nil, "", nil
}

func (f *fakeGeography) GetCountryByAcron2(_ context.Context, acron2 string) (*domain.Country, error) {
	return nil, domain.NewNotFoundError("country", acron2)
}

func (f *fakeGeography) FindCountryByName(_ context.Context, name string) (*domain.Country, error) {
	return nil, domain.NewNotFoundError("country", name)
}

func (f *fakeGeography) ListCountries(context.Context) ([]*domain.Country, error) { return nil, nil }

func (f *fakeGeography) GetOrCreateState(_ context.Context, state *domain.State) (*domain.State, error) {
	return state, nil
}

func (f *fakeGeography) GetOrCreateCity(_ context.Context, city *domain.City) (*domain.City, error) {
	return city, nil
}

func (f *fakeGeography) GetOrCreateLocation(_ context.Context, loc *domain.Location) (*domain.Location, error) {
	return loc, nil
}

func (f *fakeGeography) GetLocation(_ context.Context, id uuid.UUID) (*domain.Location, error) {
	return nil, domain.NewNotFoundError("location", id.String())
}

func (f *fakeGeography) ListLocations(context.Context) ([]*domain.Location, error) {
	return f.locations, nil
}

type fakeLookups struct {
	actions   []*domain.Action
	practices []*domain.Practice
	areas     []*domain.ThematicArea
	licenses  []*domain.License
}

func (f *fakeLookups) GetOrCreateSource(_ context.Context, name domain.SourceName) (*domain.Source, error) {
	return &domain.Source{ID: uuid.New(), Name: name}, nil
}

func (f *fakeLookups) GetOrCreateLicense(_ context.Context, license *domain.License) (*domain.License, error) {
	return license, nil
}

func (f *fakeLookups) ListLicenses(context.Context) ([]*domain.License, error) {
	return f.licenses, nil
}

func (f *fakeLookups) CreateOrUpdateConcept(context.Context, *domain.Concept) (*domain.Concept, domain.UpsertOutcome, error) {
	return nil, "", nil
}

func (f *fakeLookups) GetConceptBySpecificID(_ context.Context, specificID string) (*domain.Concept, error) {
	return nil, domain.NewNotFoundError("concept", specificID)
}

func (f *fakeLookups) GetOrCreateThematicArea(_ context.Context, area *domain.ThematicArea) (*domain.ThematicArea, error) {
	return area, nil
}

func (f *fakeLookups) ListThematicAreas(context.Context) ([]*domain.ThematicArea, error) {
	return f.areas, nil
}

func (f *fakeLookups) GetOrCreateAction(_ context.Context, name string) (*domain.Action, error) {
	return &domain.Action{ID: uuid.New(), Name: name}, nil
}

func (f *fakeLookups) GetOrCreatePractice(_ context.Context, name string, actionID uuid.UUID) (*domain.Practice, error) {
	return &domain.Practice{ID: uuid.New(), Name: name, ActionID: actionID}, nil
}

func (f *fakeLookups) ListActions(context.Context) ([]*domain.Action, []*domain.Practice, error) {
	return f.actions, f.practices, nil
}

func (f *fakeLookups) GetOrCreateTag(_ context.Context, name string) (*domain.Tag, error) {
	return &domain.Tag{ID: uuid.New(), Name: name}, nil
}

type fakeVersions struct {
	chains map[string]*domain.Indicator
}

func newFakeVersions() *fakeVersions {
	return &fakeVersions{chains: make(map[string]*domain.Indicator)}
}

func chainID(key domain.ChainKey, measurement domain.Measurement) string {
	actionID := "-"
	if key.ActionID != nil {
		actionID = key.ActionID.String()
	}
	practiceID := "-"
	if key.PracticeID != nil {
		practiceID = key.PracticeID.String()
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", actionID, practiceID, key.Classification, key.Scope, measurement)
}

func (f *fakeVersions) CreateVersion(_ context.Context, indicator *domain.Indicator) (*domain.Indicator, error) {
	id := chainID(domain.ChainKeyOf(indicator), indicator.Measurement)
	indicator.ID = uuid.New()
	indicator.Seq = 1
	if previous, ok := f.chains[id]; ok {
		indicator.Seq = previous.Seq + 1
		prevID := previous.ID
		indicator.PreviousID = &prevID
		previous.Validity = domain.ValidityOutdated
		newID := indicator.ID
		previous.PosteriorID = &newID
	}
	indicator.Validity = domain.ValidityCurrent
	f.chains[id] = indicator
	return indicator, nil
}

func (f *fakeVersions) GetCurrent(_ context.Context, key domain.ChainKey, measurement domain.Measurement) (*domain.Indicator, error) {
	if indicator, ok := f.chains[chainID(key, measurement)]; ok {
		return indicator, nil
	}
	return nil, domain.NewNotFoundError("indicator", "current")
}

type generatorFixture struct {
	directories *fakeDirectories
	articles    *fakeArticles
	lookups     *fakeLookups
	versions    *fakeVersions
	generator   *Generator

	openEducation *domain.Action
	practice      *domain.Practice
	ufpel         *domain.Institution
	rsLocation    *domain.Location
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()

	f := &generatorFixture{
		directories: &fakeDirectories{},
		articles:    &fakeArticles{},
		versions:    newFakeVersions(),
	}

	f.openEducation = &domain.Action{ID: uuid.New(), Name: "Open Education"}
	f.practice = &domain.Practice{ID: uuid.New(), Name: "Open Courseware", ActionID: f.openEducation.ID}
	f.ufpel = &domain.Institution{ID: uuid.New(), Name: "Universidade Federal de Pelotas"}

	stateID := uuid.New()
	f.rsLocation = &domain.Location{
		ID:      uuid.New(),
		StateID: &stateID,
		State:   &domain.State{ID: stateID, Name: "Rio Grande do Sul", Code: "RS", Region: "Sul"},
	}

	f.lookups = &fakeLookups{
		actions:   []*domain.Action{f.openEducation},
		practices: []*domain.Practice{f.practice},
	}

	store, err := artifact.NewLocalStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	f.generator = NewGenerator(
		f.directories,
		f.articles,
		&fakeInstitutions{institutions: []*domain.Institution{f.ufpel}},
		&fakeGeography{locations: []*domain.Location{f.rsLocation}},
		f.lookups,
		f.versions,
		store,
		config.IndicatorsConfig{MinItems: 3, EvolutionWindowYears: 10},
		zerolog.Nop(),
		nil,
	)
	f.generator.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *generatorFixture) addEvent(title, classification string) *domain.DirectoryRecord {
	record := &domain.DirectoryRecord{
		ID:             uuid.New(),
		Type:           domain.DirectoryTypeEvent,
		Title:          title,
		ActionID:       &f.openEducation.ID,
		PracticeID:     &f.practice.ID,
		Classification: classification,
		Status:         domain.RecordStatusPublished,
		LocationIDs:    []uuid.UUID{f.rsLocation.ID},
		Event: &domain.EventDetails{
			Attendance:      domain.AttendanceOnline,
			OrganizationIDs: []uuid.UUID{f.ufpel.ID},
		},
	}
	f.directories.records = append(f.directories.records, record)
	return record
}

func (f *generatorFixture) addArticle(year int, status domain.OpenAccessStatus, apc string) {
	y := year
	f.articles.articles = append(f.articles.articles, &domain.Article{
		ID:               uuid.New(),
		Title:            fmt.Sprintf("article %d", len(f.articles.articles)),
		Year:             &y,
		IsOA:             status != domain.OAStatusClosed,
		OpenAccessStatus: status,
		APC:              apc,
	})
}

func TestGroupingSpec_Dimensions(t *testing.T) {
	g := GroupingSpec{ByClassification: true, ByPractice: true, ByState: true}

	assert.Equal(t, []string{DimPractice, DimClassification, DimState}, g.Dimensions())
	assert.Equal(t, 3, g.Count())
	assert.Equal(t, DimClassification, g.stackDimension(DimPractice))
	assert.Equal(t, DimPractice, g.stackDimension(DimClassification))
}

func TestGenerator_GenerateFrequency(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addEvent("Open Data Day", "workshop")
	f.addEvent("FOSS Conference", "conference")
	f.addEvent("Data Carpentry", "workshop")

	indicator, err := f.generator.GenerateFrequency(context.Background(), Params{
		Filters:   FilterSpec{ActionName: "Open Education"},
		Groupings: GroupingSpec{ByClassification: true},
	})
	require.NoError(t, err)
	require.NotNil(t, indicator)

	assert.Equal(t, domain.MeasurementFrequency, indicator.Measurement)
	assert.Equal(t, domain.ValidityCurrent, indicator.Validity)
	assert.Equal(t, domain.RecordStatusPublished, indicator.Status)
	assert.Equal(t, 1, indicator.Seq)
	require.NotNil(t, indicator.ActionID)
	assert.Equal(t, f.openEducation.ID, *indicator.ActionID)
	assert.NotEmpty(t, indicator.RawDataPath)

	summarized := indicator.Summarized
	require.NotNil(t, summarized)
	assert.Equal(t, domain.SummarizedVersion, summarized.Version)
	assert.Len(t, summarized.Items, 3)
	assert.Contains(t, summarized.TableHeader, "classification")
	assert.Contains(t, summarized.TableHeader, "title")

	// Two workshops and one conference, counted against the event axis.
	require.Len(t, summarized.GraphicData, 2)
	assert.Equal(t, "conference", summarized.GraphicData[0].X)
	assert.Equal(t, 1, summarized.GraphicData[0].Count)
	assert.Equal(t, "workshop", summarized.GraphicData[1].X)
	assert.Equal(t, 2, summarized.GraphicData[1].Count)
	assert.Equal(t, "event", summarized.GraphicData[1].Y)
}

func TestGenerator_GenerateFrequency_BelowMinItems(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addEvent("Open Data Day", "workshop")

	indicator, err := f.generator.GenerateFrequency(context.Background(), Params{
		Filters:   FilterSpec{ActionName: "Open Education"},
		Groupings: GroupingSpec{ByClassification: true},
	})
	require.NoError(t, err)
	assert.Nil(t, indicator)
	assert.Empty(t, f.versions.chains)
}

func TestGenerator_GenerateFrequency_RequiresGrouping(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.generator.GenerateFrequency(context.Background(), Params{})
	require.Error(t, err)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestGenerator_GenerateFrequency_UnknownActionYieldsNothing(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addEvent("Open Data Day", "workshop")

	indicator, err := f.generator.GenerateFrequency(context.Background(), Params{
		Filters:   FilterSpec{ActionName: "No Such Action"},
		Groupings: GroupingSpec{ByClassification: true},
	})
	require.NoError(t, err)
	assert.Nil(t, indicator)
}

func TestGenerator_GenerateFrequency_StateScope(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addEvent("A", "workshop")
	f.addEvent("B", "workshop")
	f.addEvent("C", "workshop")

	indicator, err := f.generator.GenerateFrequency(context.Background(), Params{
		Filters:   FilterSpec{StateCode: "RS"},
		Groupings: GroupingSpec{ByInstitution: true},
	})
	require.NoError(t, err)
	require.NotNil(t, indicator)

	assert.Equal(t, domain.ScopeStatewide, indicator.Scope)
	require.Len(t, indicator.Summarized.GraphicData, 1)
	assert.Equal(t, f.ufpel.Name, indicator.Summarized.GraphicData[0].X)
	assert.Equal(t, 3, indicator.Summarized.GraphicData[0].Count)
}

func TestGenerator_GenerateEvolution(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addArticle(2022, domain.OAStatusGold, "Yes")
	f.addArticle(2022, domain.OAStatusGold, "No")
	f.addArticle(2023, domain.OAStatusClosed, "No")
	f.addArticle(2023, domain.OAStatusGold, "Yes")

	begin, end := 2022, 2023
	indicator, err := f.generator.GenerateEvolution(context.Background(), Params{
		Filters:   FilterSpec{BeginYear: &begin, EndYear: &end},
		Groupings: GroupingSpec{ByOpenAccessStatus: true},
	})
	require.NoError(t, err)
	require.NotNil(t, indicator)

	assert.Equal(t, domain.MeasurementEvolution, indicator.Measurement)
	require.NotNil(t, indicator.StartDateYear)
	assert.Equal(t, 2022, *indicator.StartDateYear)
	require.NotNil(t, indicator.EndDateYear)
	assert.Equal(t, 2023, *indicator.EndDateYear)
	assert.Len(t, indicator.Summarized.Items, 4)

	// gold x 2022 (2), closed x 2023 (1), gold x 2023 (1).
	points := indicator.Summarized.GraphicData
	require.Len(t, points, 3)
	assert.Equal(t, domain.GraphicPoint{X: "closed", Y: "2023", Count: 1, Stack: "2023"}, points[0])
	assert.Equal(t, domain.GraphicPoint{X: "gold", Y: "2022", Count: 2, Stack: "2022"}, points[1])
	assert.Equal(t, domain.GraphicPoint{X: "gold", Y: "2023", Count: 1, Stack: "2023"}, points[2])
}

func TestGenerator_EvolutionWindowDefaults(t *testing.T) {
	f := newGeneratorFixture(t)

	begin, end := f.generator.evolutionWindow(FilterSpec{}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2015, begin)
	assert.Equal(t, 2024, end)
}

func TestGenerator_Versioning(t *testing.T) {
	f := newGeneratorFixture(t)
	f.addEvent("A", "workshop")
	f.addEvent("B", "workshop")
	f.addEvent("C", "conference")

	params := Params{
		Filters:   FilterSpec{ActionName: "Open Education"},
		Groupings: GroupingSpec{ByClassification: true},
	}

	first, err := f.generator.GenerateFrequency(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Seq)

	second, err := f.generator.GenerateFrequency(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, 2, second.Seq)
	require.NotNil(t, second.PreviousID)
	assert.Equal(t, first.ID, *second.PreviousID)
	assert.Equal(t, domain.ValidityOutdated, first.Validity)
	require.NotNil(t, first.PosteriorID)
	assert.Equal(t, second.ID, *first.PosteriorID)
}

func TestMeasurementFor(t *testing.T) {
	assert.Equal(t, domain.MeasurementEvolution, measurementFor(GroupingSpec{ByOpenAccessStatus: true}))
	assert.Equal(t, domain.MeasurementEvolution, measurementFor(GroupingSpec{ByLicense: true}))
	assert.Equal(t, domain.MeasurementFrequency, measurementFor(GroupingSpec{ByClassification: true}))
}

func TestScheduleID_Stable(t *testing.T) {
	task := ScheduledTask{
		Measurement: domain.MeasurementFrequency,
		Params: Params{
			Filters:   FilterSpec{ActionName: "Open Education"},
			Groupings: GroupingSpec{ByClassification: true, ByState: true},
		},
	}

	assert.Equal(t, scheduleID(task), scheduleID(task))
	assert.Equal(t, "indicator-frequency-open-education-classification-location-state", scheduleID(task))
}
