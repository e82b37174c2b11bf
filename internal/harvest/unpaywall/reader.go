// Package unpaywall reads Unpaywall database snapshots: newline
// delimited JSON files, optionally gzip compressed, one work per line.
package unpaywall

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

const defaultBatchSize = 200

// maxLineSize bounds one snapshot line. Unpaywall records with large
// author lists can exceed bufio's default 64KiB.
const maxLineSize = 16 << 20

// record is the subset of an Unpaywall work used for the raw snapshot.
type record struct {
	DOI           string `json:"doi"`
	Title         string `json:"title"`
	Year          *int   `json:"year"`
	Genre         string `json:"genre"`
	IsOA          bool   `json:"is_oa"`
	OAStatus      string `json:"oa_status"`
	JournalName   string `json:"journal_name"`
	JournalISSNL  string `json:"journal_issn_l"`
	PublishedDate string `json:"published_date"`
	Updated       string `json:"updated"`
}

// SnapshotSource streams a snapshot file as harvest pages. The cursor
// is the zero-based line offset of the next unread line, so a resumed
// run skips what was already stored.
type SnapshotSource struct {
	open      func() (io.ReadCloser, error)
	batchSize int
	logger    zerolog.Logger

	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// NewSnapshotSource creates a source over a snapshot opened by open.
// batchSize records form one page; zero uses the default of 200.
func NewSnapshotSource(open func() (io.ReadCloser, error), batchSize int, logger zerolog.Logger) *SnapshotSource {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SnapshotSource{
		open:      open,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "unpaywall-reader").Logger(),
	}
}

// OpenFile returns an opener for a snapshot on the local filesystem.
// Gzip compression is detected from the file's magic bytes.
func OpenFile(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
		}
		rc, err := maybeGunzip(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
		}
		return rc, nil
	}
}

// Name implements harvest.Source.
func (s *SnapshotSource) Name() domain.SourceName { return domain.SourceUnpaywall }

// FetchPage implements harvest.Source. Cursors must be requested in
// file order; seeking backwards reopens the snapshot from the top.
func (s *SnapshotSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, domain.NewPermanentFetchError(string(domain.SourceUnpaywall), 0, err)
	}

	if s.scanner == nil || offset < s.line {
		if err := s.reset(); err != nil {
			return nil, err
		}
	}
	for s.line < offset {
		if !s.scanner.Scan() {
			return nil, s.scanFailure(fmt.Errorf("cursor %d beyond end of snapshot", offset))
		}
		s.line++
	}

	page := &harvest.Page{}
	for len(page.Articles) < s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, s.scanFailure(err)
			}
			s.close()
			return page, nil
		}

		line := s.scanner.Bytes()
		s.line++
		if len(line) == 0 {
			continue
		}

		raw, err := rawArticleFromLine(line)
		if err != nil {
			s.logger.Warn().Err(err).Int("line", s.line).Msg("skipping undecodable snapshot line")
			continue
		}
		page.Articles = append(page.Articles, raw)
	}

	page.NextCursor = strconv.Itoa(s.line)
	return page, nil
}

func (s *SnapshotSource) reset() error {
	s.close()
	rc, err := s.open()
	if err != nil {
		return domain.NewPermanentFetchError(string(domain.SourceUnpaywall), 0, err)
	}
	s.rc = rc
	s.scanner = bufio.NewScanner(rc)
	s.scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	s.line = 0
	return nil
}

func (s *SnapshotSource) close() {
	if s.rc != nil {
		s.rc.Close()
		s.rc = nil
	}
	s.scanner = nil
}

func (s *SnapshotSource) scanFailure(err error) error {
	s.close()
	return domain.NewPermanentFetchError(string(domain.SourceUnpaywall), 0, err)
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" || cursor == harvest.CursorStart {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("malformed snapshot cursor %q", cursor)
	}
	return offset, nil
}

func rawArticleFromLine(line []byte) (*domain.RawArticle, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if rec.DOI == "" {
		return nil, fmt.Errorf("record has no DOI")
	}

	payload := make([]byte, len(line))
	copy(payload, line)

	return &domain.RawArticle{
		SpecificID:    rec.DOI,
		Source:        domain.SourceUnpaywall,
		Payload:       payload,
		DOI:           domain.CleanDOI(rec.DOI),
		Title:         rec.Title,
		Year:          rec.Year,
		SourceUpdated: parseTimestamp(rec.Updated),
	}, nil
}

// parseTimestamp handles the snapshot's microsecond timestamps, with
// and without a timezone suffix.
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// maybeGunzip wraps r in a gzip reader when the stream starts with the
// gzip magic bytes.
func maybeGunzip(r io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &gzipReadCloser{Reader: gz, underlying: r}, nil
	}
	return &bufferedReadCloser{Reader: br, underlying: r}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return gzErr
}

type bufferedReadCloser struct {
	*bufio.Reader
	underlying io.ReadCloser
}

func (b *bufferedReadCloser) Close() error {
	return b.underlying.Close()
}
