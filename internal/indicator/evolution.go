package indicator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

// evolutionWindow resolves the year range of an evolution run. Unset
// bounds default to the trailing configured window ending this year.
func (g *Generator) evolutionWindow(spec FilterSpec, now time.Time) (int, int) {
	end := now.UTC().Year()
	if spec.EndYear != nil {
		end = *spec.EndYear
	}
	begin := end - g.windowYears + 1
	if spec.BeginYear != nil {
		begin = *spec.BeginYear
	}
	if begin > end {
		begin = end
	}
	return begin, end
}

// collectEvolutionRows walks the articles published inside the year
// window. The row axis is the publication year.
func (g *Generator) collectEvolutionRows(ctx context.Context, begin, end int, ref *refData) ([]row, error) {
	var rows []row
	offset := 0
	for {
		articles, _, err := g.articles.List(ctx, repository.ArticleFilter{
			YearFrom: &begin,
			YearTo:   &end,
			Limit:    refBatchSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing articles: %w", err)
		}

		for _, article := range articles {
			if article.Year == nil {
				continue
			}
			rows = append(rows, g.evolutionRow(article, ref))
		}

		if len(articles) < refBatchSize {
			break
		}
		offset += len(articles)
	}
	return rows, nil
}

func (g *Generator) evolutionRow(article *domain.Article, ref *refData) row {
	year := strconv.Itoa(*article.Year)
	license := ref.licenseName(article.LicenseID)

	values := map[string][]string{
		DimOpenAccessStatus:    nonEmpty(string(article.OpenAccessStatus)),
		DimLicense:             nonEmpty(license),
		DimArticleProcessingCh: nonEmpty(article.APC),
	}

	item := map[string]any{
		"title":                article.Title,
		"doi":                  article.DOI,
		"year":                 *article.Year,
		"is_oa":                article.IsOA,
		DimOpenAccessStatus:    string(article.OpenAccessStatus),
		DimLicense:             license,
		DimArticleProcessingCh: article.APC,
	}

	return row{axis: year, values: values, item: item}
}
