package promote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest/openalex"
)

// PromoteInstitutions walks raw OpenAlex institutions and upserts them
// as per-source institution records with their localized names.
func (p *Promoter) PromoteInstitutions(ctx context.Context, opts Options) (*Stats, error) {
	loopSize := opts.LoopSize
	if loopSize <= 0 {
		loopSize = defaultLoopSize
	}

	stats := &Stats{}
	for offset := 0; ; offset += loopSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batchStart := time.Now()
		raws, _, err := p.raws.ListInstitutions(ctx, domain.SourceOpenAlex, loopSize, offset)
		if err != nil {
			return stats, fmt.Errorf("listing raw institutions at offset %d: %w", offset, err)
		}
		if len(raws) == 0 {
			break
		}

		for _, raw := range raws {
			stats.Processed++
			outcome, err := p.promoteInstitution(ctx, raw)
			if err != nil {
				stats.Failed++
				p.logger.Error().Err(err).Str("specific_id", raw.SpecificID).Msg("failed to promote raw institution")
				continue
			}
			switch outcome {
			case domain.OutcomeCreated:
				stats.Created++
			case domain.OutcomeUpdated:
				stats.Updated++
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
		Int("failed", stats.Failed).
		Msg("institution promotion finished")
	return stats, nil
}

func (p *Promoter) promoteInstitution(ctx context.Context, raw *domain.RawInstitution) (domain.UpsertOutcome, error) {
	var inst openalex.Institution
	if err := json.Unmarshal(raw.Payload, &inst); err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	if inst.ID == "" {
		return "", fmt.Errorf("institution has no id")
	}

	si := &domain.SourceInstitution{
		SpecificID:  inst.ID,
		Source:      domain.SourceOpenAlex,
		Name:        inst.DisplayName,
		CountryCode: inst.CountryCode,
	}

	// Stable language order keeps re-promotion deterministic.
	languages := make([]string, 0, len(inst.International.DisplayName))
	for language := range inst.International.DisplayName {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	for _, language := range languages {
		si.Translations = append(si.Translations, domain.SourceInstitutionTranslation{
			Language: language,
			Name:     inst.International.DisplayName[language],
		})
	}

	_, outcome, err := p.institutions.CreateOrUpdateSourceInstitution(ctx, si)
	if err != nil {
		return "", fmt.Errorf("upserting source institution: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPromotion("source_institution", string(outcome))
	}
	return outcome, nil
}

// PromoteJournals walks raw OpenAlex source records and upserts them as
// canonical journals.
func (p *Promoter) PromoteJournals(ctx context.Context, opts Options) (*Stats, error) {
	loopSize := opts.LoopSize
	if loopSize <= 0 {
		loopSize = defaultLoopSize
	}

	stats := &Stats{}
	for offset := 0; ; offset += loopSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raws, _, err := p.raws.ListJournals(ctx, domain.SourceOpenAlex, loopSize, offset)
		if err != nil {
			return stats, fmt.Errorf("listing raw journals at offset %d: %w", offset, err)
		}
		if len(raws) == 0 {
			break
		}

		for _, raw := range raws {
			stats.Processed++
			outcome, err := p.promoteRawJournal(ctx, raw)
			if err != nil {
				stats.Failed++
				p.logger.Error().Err(err).Str("specific_id", raw.SpecificID).Msg("failed to promote raw journal")
				continue
			}
			switch outcome {
			case domain.OutcomeCreated:
				stats.Created++
			case domain.OutcomeUpdated:
				stats.Updated++
			}
		}

		if len(raws) < loopSize {
			break
		}
	}

	p.logger.Info().
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Msg("journal promotion finished")
	return stats, nil
}

func (p *Promoter) promoteRawJournal(ctx context.Context, raw *domain.RawJournal) (domain.UpsertOutcome, error) {
	var venue openalex.Venue
	if err := json.Unmarshal(raw.Payload, &venue); err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	if venue.ISSNL == "" && venue.DisplayName == "" {
		return "", fmt.Errorf("source record has neither issn_l nor display_name")
	}

	_, outcome, err := p.journals.CreateOrUpdate(ctx, &domain.Journal{
		ISSNL:     venue.ISSNL,
		ISSNs:     venue.ISSN,
		Name:      venue.DisplayName,
		Publisher: venue.HostOrganizationName,
		IsInDOAJ:  venue.IsInDOAJ,
	})
	if err != nil {
		return "", fmt.Errorf("upserting journal: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPromotion("journal", string(outcome))
	}
	return outcome, nil
}
