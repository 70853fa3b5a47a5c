// Package catalog defines the data model of the external music catalog
// service and the clients used to reach it.
package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Role classifies how an artist is credited on a release.
type Role string

// Credit roles, from primary billing to incidental credits.
const (
	RoleMain   Role = "main"
	RoleExtra  Role = "extra"
	RoleCredit Role = "credit"
)

// Kind distinguishes concrete releases from master groupings.
type Kind string

// Release kinds returned by the catalog.
const (
	KindRelease Kind = "release"
	KindMaster  Kind = "master"
)

// Session is an authenticated catalog session. Re-authentication returns a
// new Session value; a session is never mutated after issue.
type Session struct {
	ID        string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Artist is the catalog's view of an artist.
type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PageURL  string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
}

// Validate checks the fields the traversal relies on.
func (a Artist) Validate() error {
	if a.ID == "" {
		return errors.New("artist id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("artist %s has no name", a.ID)
	}
	return nil
}

// Credit is a single artist credit on a release or track.
type Credit struct {
	ArtistID   string `json:"id"`
	Name       string `json:"name"`
	CreditType string `json:"role,omitempty"`
}

// Track is one tracklist entry with its own credits.
type Track struct {
	Position     string   `json:"position"`
	Title        string   `json:"title"`
	ExtraArtists []Credit `json:"extraartists,omitempty"`
}

// ReleaseSummary is one entry of an artist's paginated release listing.
type ReleaseSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	PageURL       string `json:"url"`
	Year          int    `json:"year,omitempty"`
	Kind          Kind   `json:"type"`
	MainReleaseID string `json:"main_release,omitempty"`
}

// Release carries the full credit data for a single release.
type Release struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	PageURL      string   `json:"url"`
	Year         int      `json:"year,omitempty"`
	Kind         Kind     `json:"type"`
	Artists      []Credit `json:"artists"`
	ExtraArtists []Credit `json:"extraartists,omitempty"`
	Tracklist    []Track  `json:"tracklist,omitempty"`
}

// Validate checks the fields the extraction relies on.
func (r Release) Validate() error {
	if r.ID == "" {
		return errors.New("release id is required")
	}
	if r.Title == "" {
		return fmt.Errorf("release %s has no title", r.ID)
	}
	return nil
}

// Pagination describes a zero-indexed window of a release listing. Pages is
// the total page count, discoverable from the first page.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// ReleasePage is one page of an artist's release listing.
type ReleasePage struct {
	Pagination Pagination       `json:"pagination"`
	Releases   []ReleaseSummary `json:"releases"`
}

// Validate checks pagination consistency at the service boundary.
func (p ReleasePage) Validate() error {
	if p.Pagination.Page < 0 || p.Pagination.Pages < 0 {
		return errors.New("pagination indexes must not be negative")
	}
	if p.Pagination.Pages > 0 && p.Pagination.Page >= p.Pagination.Pages {
		return fmt.Errorf("page %d out of range (%d pages)", p.Pagination.Page, p.Pagination.Pages)
	}
	return nil
}

// SearchResult is one hit of a catalog search.
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"type"`
}
