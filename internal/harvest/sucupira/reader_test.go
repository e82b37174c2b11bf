package sucupira

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

func writeLatin1(t *testing.T, dir, name, content string) string {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))
	return path
}

func newTestSource(t *testing.T, batchSize int) *FileSource {
	t.Helper()
	dir := t.TempDir()

	productionCSV := "ID_ADD_PRODUCAO_INTELECTUAL;NM_PRODUCAO;AN_BASE;NM_ENTIDADE_ENSINO;SG_ENTIDADE_ENSINO\n" +
		"101;ESTOQUES DE CARBONO NO CERRADO;2018;UNIVERSIDADE DE SÃO PAULO;USP\n" +
		"102;AVALIAÇÃO DE POLÍTICAS PÚBLICAS;2019;UNIVERSIDADE FEDERAL DE MINAS GERAIS;UFMG\n" +
		"103;PRODUÇÃO SEM DETALHES;2020;UNIVERSIDADE DE BRASÍLIA;UNB\n"

	detailsCSV := "ID_ADD_PRODUCAO_INTELECTUAL;NM_AUTOR;DS_DOI\n" +
		"101;MARIA SILVA;https://doi.org/10.1590/s0100-204x2018000100001\n" +
		"101;JOÃO SANTOS;\n" +
		"102;ANA PEREIRA;DOI: 10.1000/xyz123\n" +
		"999;FANTASMA;\n"

	return NewFileSource(
		writeLatin1(t, dir, "producao.csv", productionCSV),
		writeLatin1(t, dir, "detalhes.csv", detailsCSV),
		batchSize,
		zerolog.Nop(),
	)
}

func TestFileSource_FetchPage_MergesDetails(t *testing.T) {
	src := newTestSource(t, 10)

	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	require.Len(t, page.Articles, 3)
	assert.Empty(t, page.NextCursor)

	first := page.Articles[0]
	assert.Equal(t, "101", first.SpecificID)
	assert.Equal(t, domain.SourceSucupira, first.Source)
	assert.Equal(t, "ESTOQUES DE CARBONO NO CERRADO", first.Title)
	assert.Equal(t, "10.1590/s0100-204x2018000100001", first.DOI)
	require.NotNil(t, first.Year)
	assert.Equal(t, 2018, *first.Year)

	var prod production
	require.NoError(t, json.Unmarshal(first.Payload, &prod))
	assert.Equal(t, []string{"MARIA SILVA", "JOÃO SANTOS"}, prod.Authors)
	assert.Equal(t, "UNIVERSIDADE DE SÃO PAULO", prod.Institution)
	assert.Equal(t, "USP", prod.Acronym)
}

func TestFileSource_FetchPage_ExtractsDOIFromNoise(t *testing.T) {
	src := newTestSource(t, 10)

	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	assert.Equal(t, "10.1000/xyz123", page.Articles[1].DOI)
}

func TestFileSource_FetchPage_ProductionWithoutDetails(t *testing.T) {
	src := newTestSource(t, 10)

	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	third := page.Articles[2]
	assert.Equal(t, "103", third.SpecificID)
	assert.Empty(t, third.DOI)

	var prod production
	require.NoError(t, json.Unmarshal(third.Payload, &prod))
	assert.Empty(t, prod.Authors)
}

func TestFileSource_FetchPage_Paginates(t *testing.T) {
	src := newTestSource(t, 2)

	first, err := src.FetchPage(context.Background(), harvest.CursorStart)
	require.NoError(t, err)
	assert.Len(t, first.Articles, 2)
	assert.Equal(t, "2", first.NextCursor)

	second, err := src.FetchPage(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.Len(t, second.Articles, 1)
	assert.Empty(t, second.NextCursor)
}

func TestFileSource_FetchPage_MissingFile(t *testing.T) {
	src := NewFileSource("/nonexistent/producao.csv", "/nonexistent/detalhes.csv", 10, zerolog.Nop())

	_, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}

func TestFileSource_FetchPage_MissingIDColumn(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource(
		writeLatin1(t, dir, "producao.csv", "NM_PRODUCAO;AN_BASE\nSEM ID;2020\n"),
		writeLatin1(t, dir, "detalhes.csv", "ID_ADD_PRODUCAO_INTELECTUAL;NM_AUTOR\n1;A\n"),
		10,
		zerolog.Nop(),
	)

	_, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}
