// Package sucupira reads CAPES Sucupira intellectual-production CSV
// exports: two semicolon-separated, ISO-8859-1 encoded files (the
// production list and its per-author details) merged on the production
// identifier.
package sucupira

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

const defaultBatchSize = 200

// Column names in the CAPES export headers.
const (
	colProductionID = "ID_ADD_PRODUCAO_INTELECTUAL"
	colTitle        = "NM_PRODUCAO"
	colYear         = "AN_BASE"
	colInstitution  = "NM_ENTIDADE_ENSINO"
	colAcronym      = "SG_ENTIDADE_ENSINO"
	colAuthor       = "NM_AUTOR"
	colDOI          = "DS_DOI"
)

// production is the merged view of one intellectual production, stored
// as the raw article payload.
type production struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Year        int      `json:"year,omitempty"`
	Institution string   `json:"institution,omitempty"`
	Acronym     string   `json:"acronym,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	Authors     []string `json:"authors,omitempty"`
}

// FileSource streams the merged CSVs as harvest pages. Both files are
// read and merged on first use; the cursor is the offset into the
// merged production list.
type FileSource struct {
	productionPath string
	detailsPath    string
	batchSize      int
	logger         zerolog.Logger

	merged []production
	loaded bool
}

// NewFileSource creates a source over a production CSV and its details
// CSV. batchSize productions form one page; zero uses the default of 200.
func NewFileSource(productionPath, detailsPath string, batchSize int, logger zerolog.Logger) *FileSource {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &FileSource{
		productionPath: productionPath,
		detailsPath:    detailsPath,
		batchSize:      batchSize,
		logger:         logger.With().Str("component", "sucupira-reader").Logger(),
	}
}

// Name implements harvest.Source.
func (s *FileSource) Name() domain.SourceName { return domain.SourceSucupira }

// FetchPage implements harvest.Source.
func (s *FileSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.loaded {
		if err := s.load(); err != nil {
			return nil, domain.NewPermanentFetchError(string(domain.SourceSucupira), 0, err)
		}
	}

	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, domain.NewPermanentFetchError(string(domain.SourceSucupira), 0, err)
	}
	if offset > len(s.merged) {
		return nil, domain.NewPermanentFetchError(string(domain.SourceSucupira), 0, fmt.Errorf("cursor %d beyond end of export (%d productions)", offset, len(s.merged)))
	}

	end := offset + s.batchSize
	if end > len(s.merged) {
		end = len(s.merged)
	}

	page := &harvest.Page{}
	for _, prod := range s.merged[offset:end] {
		raw, err := rawArticleFromProduction(prod)
		if err != nil {
			s.logger.Warn().Err(err).Str("production_id", prod.ID).Msg("skipping production")
			continue
		}
		page.Articles = append(page.Articles, raw)
	}
	if end < len(s.merged) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// load reads both CSVs and merges details (authors, DOI) into their
// productions, preserving the production file's row order.
func (s *FileSource) load() error {
	productions, order, err := s.readProductions()
	if err != nil {
		return err
	}
	if err := s.mergeDetails(productions); err != nil {
		return err
	}

	s.merged = make([]production, 0, len(order))
	for _, id := range order {
		s.merged = append(s.merged, *productions[id])
	}
	s.loaded = true

	s.logger.Info().Int("productions", len(s.merged)).Msg("sucupira export loaded")
	return nil
}

func (s *FileSource) readProductions() (map[string]*production, []string, error) {
	rows, header, err := readCSV(s.productionPath)
	if err != nil {
		return nil, nil, err
	}
	idCol, ok := header[colProductionID]
	if !ok {
		return nil, nil, fmt.Errorf("production file %s has no %s column", s.productionPath, colProductionID)
	}

	productions := make(map[string]*production)
	var order []string
	for _, row := range rows {
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}
		if _, seen := productions[id]; seen {
			continue
		}

		prod := &production{ID: id}
		prod.Title = cell(row, header, colTitle)
		prod.Institution = cell(row, header, colInstitution)
		prod.Acronym = cell(row, header, colAcronym)
		if year, err := strconv.Atoi(cell(row, header, colYear)); err == nil {
			prod.Year = year
		}
		productions[id] = prod
		order = append(order, id)
	}
	return productions, order, nil
}

// mergeDetails groups the detail rows per production id, collecting
// authors and the first DOI found.
func (s *FileSource) mergeDetails(productions map[string]*production) error {
	rows, header, err := readCSV(s.detailsPath)
	if err != nil {
		return err
	}
	idCol, ok := header[colProductionID]
	if !ok {
		return fmt.Errorf("details file %s has no %s column", s.detailsPath, colProductionID)
	}

	for _, row := range rows {
		id := strings.TrimSpace(row[idCol])
		prod, ok := productions[id]
		if !ok {
			continue
		}

		if author := cell(row, header, colAuthor); author != "" {
			prod.Authors = append(prod.Authors, author)
		}
		if prod.DOI == "" {
			prod.DOI = domain.CleanDOI(cell(row, header, colDOI))
		}
	}
	return nil
}

func rawArticleFromProduction(prod production) (*domain.RawArticle, error) {
	payload, err := json.Marshal(prod)
	if err != nil {
		return nil, fmt.Errorf("encoding production: %w", err)
	}

	raw := &domain.RawArticle{
		SpecificID: prod.ID,
		Source:     domain.SourceSucupira,
		Payload:    payload,
		DOI:        prod.DOI,
		Title:      prod.Title,
	}
	if prod.Year > 0 {
		year := prod.Year
		raw.Year = &year
	}
	return raw, nil
}

// readCSV parses a semicolon-separated, ISO-8859-1 encoded file and
// returns its data rows plus a header-name index.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToUpper(name))] = i
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, index, nil
}

func cell(row []string, header map[string]int, name string) string {
	col, ok := header[name]
	if !ok || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" || cursor == harvest.CursorStart {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("malformed export cursor %q", cursor)
	}
	return offset, nil
}
