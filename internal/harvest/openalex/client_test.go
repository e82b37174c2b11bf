package openalex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

const workJSON = `{
	"id": "https://openalex.org/W2741809807",
	"doi": "https://doi.org/10.7717/peerj.4375",
	"title": "The state of OA: a large-scale analysis",
	"display_name": "The state of OA: a large-scale analysis",
	"publication_year": 2018,
	"publication_date": "2018-02-13",
	"language": "en",
	"primary_location": {
		"is_oa": true,
		"license": "cc-by",
		"source": {
			"id": "https://openalex.org/S1983995261",
			"display_name": "PeerJ",
			"issn_l": "2167-8359",
			"issn": ["2167-8359"],
			"is_in_doaj": true
		}
	},
	"open_access": {"is_oa": true, "oa_status": "gold"},
	"authorships": [{
		"author": {
			"id": "https://openalex.org/A5048491430",
			"display_name": "Heather Piwowar",
			"orcid": "https://orcid.org/0000-0003-1613-5981"
		},
		"institutions": [{"id": "https://openalex.org/I4210166736", "display_name": "Impactstory", "country_code": "US"}],
		"raw_affiliation_strings": ["Impactstory, Sanford, NC, USA"]
	}],
	"concepts": [{"id": "https://openalex.org/C2778805511", "display_name": "Citation", "level": 2, "score": 0.45}],
	"created_date": "2017-08-08",
	"updated_date": "2023-06-08T21:22:31.821378"
}`

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := harvest.NewHTTPClient(harvest.HTTPClientConfig{Source: "OPENALEX"}, zerolog.Nop(), nil)
	return NewWithHTTPClient(Config{BaseURL: server.URL, MailTo: "ops@example.org", PerPage: 2}, httpClient, zerolog.Nop())
}

func TestWorksSource_FetchPage(t *testing.T) {
	var gotQuery map[string]string
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/works", r.URL.Path)
		gotQuery = map[string]string{
			"filter":   r.URL.Query().Get("filter"),
			"per-page": r.URL.Query().Get("per-page"),
			"cursor":   r.URL.Query().Get("cursor"),
			"mailto":   r.URL.Query().Get("mailto"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"meta": {"count": 1, "next_cursor": "IlsxNjA5XSI="}, "results": [` + workJSON + `]}`))
	})

	src := NewWorksSource(client, "institutions.country_code:BR")
	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	assert.Equal(t, "institutions.country_code:BR", gotQuery["filter"])
	assert.Equal(t, "2", gotQuery["per-page"])
	assert.Equal(t, "*", gotQuery["cursor"])
	assert.Equal(t, "ops@example.org", gotQuery["mailto"])

	assert.Equal(t, "IlsxNjA5XSI=", page.NextCursor)
	require.Len(t, page.Articles, 1)

	raw := page.Articles[0]
	assert.Equal(t, "https://openalex.org/W2741809807", raw.SpecificID)
	assert.Equal(t, domain.SourceOpenAlex, raw.Source)
	assert.Equal(t, "10.7717/peerj.4375", raw.DOI)
	assert.Equal(t, "The state of OA: a large-scale analysis", raw.Title)
	require.NotNil(t, raw.Year)
	assert.Equal(t, 2018, *raw.Year)
	require.NotNil(t, raw.SourceCreated)
	assert.Equal(t, 2017, raw.SourceCreated.Year())
	require.NotNil(t, raw.SourceUpdated)
	assert.Equal(t, time.June, raw.SourceUpdated.Month())
	assert.JSONEq(t, workJSON, string(raw.Payload))
}

func TestWorksSource_FetchPage_LastPage(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {"count": 1, "next_cursor": null}, "results": []}`))
	})

	src := NewWorksSource(client, "")
	page, err := src.FetchPage(context.Background(), "IlsxNjA5XSI=")

	require.NoError(t, err)
	assert.Empty(t, page.NextCursor, "exhausted cursor ends the run")
	assert.Zero(t, page.Len())
}

func TestWorksSource_FetchPage_SkipsUndecodableResults(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {"next_cursor": ""}, "results": [{"id": ""}, ` + workJSON + `]}`))
	})

	src := NewWorksSource(client, "")
	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	assert.Len(t, page.Articles, 1)
}

func TestWorksSource_FetchPage_MalformedBody(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	src := NewWorksSource(client, "")
	_, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}

func TestInstitutionsSource_FetchPage(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/institutions", r.URL.Path)
		w.Write([]byte(`{"meta": {"next_cursor": ""}, "results": [{
			"id": "https://openalex.org/I17974374",
			"display_name": "Universidade de São Paulo",
			"ror": "https://ror.org/036rp1748",
			"country_code": "BR",
			"geo": {"city": "São Paulo", "region": "São Paulo", "country": "Brazil"},
			"created_date": "2016-06-24"
		}]}`))
	})

	src := NewInstitutionsSource(client, "country_code:BR")
	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	require.Len(t, page.Institutions, 1)
	assert.Equal(t, "https://openalex.org/I17974374", page.Institutions[0].SpecificID)
	assert.Equal(t, "Universidade de São Paulo", page.Institutions[0].Name)
	assert.Equal(t, "BR", page.Institutions[0].CountryCode)
}

func TestVenuesSource_FetchPage(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sources", r.URL.Path)
		w.Write([]byte(`{"meta": {"next_cursor": ""}, "results": [{
			"id": "https://openalex.org/S1983995261",
			"display_name": "PeerJ",
			"issn_l": "2167-8359",
			"issn": ["2167-8359"],
			"is_in_doaj": true
		}]}`))
	})

	src := NewVenuesSource(client, "")
	page, err := src.FetchPage(context.Background(), harvest.CursorStart)

	require.NoError(t, err)
	require.Len(t, page.Journals, 1)
	assert.Equal(t, "2167-8359", page.Journals[0].ISSNL)
	assert.Equal(t, "PeerJ", page.Journals[0].Name)
}

func TestWork_Abstract(t *testing.T) {
	var work Work
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "https://openalex.org/W1",
		"abstract_inverted_index": {"analysis": [2], "large-scale": [1], "A": [0]}
	}`), &work))

	assert.Equal(t, "A large-scale analysis", work.Abstract())
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://doi.org/10.7717/PeerJ.4375", want: "10.7717/peerj.4375"},
		{in: "10.1590/S0100-204X2018000100001", want: "10.1590/s0100-204x2018000100001"},
		{in: "", want: ""},
		{in: "not-a-doi", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDOI(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeORCID(t *testing.T) {
	assert.Equal(t, "0000-0003-1613-5981", NormalizeORCID("https://orcid.org/0000-0003-1613-5981"))
	assert.Equal(t, "0000-0003-1613-5981", NormalizeORCID("0000-0003-1613-5981"))
	assert.Empty(t, NormalizeORCID(""))
}
