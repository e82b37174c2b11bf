package openalex

import "encoding/json"

// listResponse is the envelope shared by all OpenAlex list endpoints.
// Results stay as raw JSON so the full upstream payload can be stored
// verbatim alongside the decoded fields.
type listResponse struct {
	Meta    meta              `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

type meta struct {
	Count      int    `json:"count"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

// Work is the subset of an OpenAlex work record used for promotion
// into the canonical store.
type Work struct {
	ID              string           `json:"id"`
	DOI             string           `json:"doi"`
	Title           string           `json:"title"`
	DisplayName     string           `json:"display_name"`
	PublicationYear int              `json:"publication_year"`
	PublicationDate string           `json:"publication_date"`
	Language        string           `json:"language"`
	Type            string           `json:"type"`
	CitedByCount    int              `json:"cited_by_count"`
	PrimaryLocation *Location        `json:"primary_location"`
	OpenAccess      OpenAccess       `json:"open_access"`
	Authorships     []Authorship     `json:"authorships"`
	Concepts        []DehydratedRef  `json:"concepts"`
	APCList         *APC             `json:"apc_list"`
	APCPaid         *APC             `json:"apc_paid"`
	AbstractIndex   map[string][]int `json:"abstract_inverted_index"`
	CreatedDate     string           `json:"created_date"`
	UpdatedDate     string           `json:"updated_date"`
}

// Location is where a work is hosted, including its source venue.
type Location struct {
	IsOA    bool        `json:"is_oa"`
	License string      `json:"license"`
	Source  *WorkSource `json:"source"`
	Version string      `json:"version"`
}

// WorkSource is the venue embedded in a work's location.
type WorkSource struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	ISSNL       string   `json:"issn_l"`
	ISSN        []string `json:"issn"`
	IsInDOAJ    bool     `json:"is_in_doaj"`
	IsOA        bool     `json:"is_oa"`
	Type        string   `json:"type"`
}

// OpenAccess carries a work's open access flags.
type OpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

// Authorship links a work to one author and their declared affiliations.
type Authorship struct {
	AuthorPosition        string            `json:"author_position"`
	Author                Author            `json:"author"`
	Institutions          []WorkInstitution `json:"institutions"`
	RawAffiliationStrings []string          `json:"raw_affiliation_strings"`
	IsCorresponding       bool              `json:"is_corresponding"`
}

// Author is the dehydrated author embedded in an authorship.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ORCID       string `json:"orcid"`
}

// WorkInstitution is the dehydrated institution embedded in an authorship.
type WorkInstitution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ROR         string `json:"ror"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
}

// DehydratedRef is a scored reference to a concept.
type DehydratedRef struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}

// APC is an article processing charge entry.
type APC struct {
	Value      int    `json:"value"`
	Currency   string `json:"currency"`
	ValueUSD   int    `json:"value_usd"`
	Provenance string `json:"provenance"`
}

// Institution is the subset of an OpenAlex institution record used for
// promotion.
type Institution struct {
	ID                  string        `json:"id"`
	DisplayName         string        `json:"display_name"`
	DisplayNameAcronyms []string      `json:"display_name_acronyms"`
	ROR                 string        `json:"ror"`
	CountryCode         string        `json:"country_code"`
	Type                string        `json:"type"`
	HomepageURL         string        `json:"homepage_url"`
	Geo                 Geo           `json:"geo"`
	International       international `json:"international"`
	CreatedDate         string        `json:"created_date"`
	UpdatedDate         string        `json:"updated_date"`
}

type international struct {
	DisplayName map[string]string `json:"display_name"`
}

// Geo locates an institution.
type Geo struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// Venue is the subset of an OpenAlex source (journal) record used for
// promotion.
type Venue struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"display_name"`
	ISSNL                string   `json:"issn_l"`
	ISSN                 []string `json:"issn"`
	IsInDOAJ             bool     `json:"is_in_doaj"`
	IsOA                 bool     `json:"is_oa"`
	Type                 string   `json:"type"`
	HostOrganizationName string   `json:"host_organization_name"`
	HomepageURL          string   `json:"homepage_url"`
	CreatedDate          string   `json:"created_date"`
	UpdatedDate          string   `json:"updated_date"`
}
