package workqueue

import (
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
)

const DefaultPerPage = 10

// State is everything needed to render a queue: who is looking, the cached
// claim set, and the current filter and page. Update methods return a new
// State and never modify the receiver's claim slice.
type State struct {
	Viewer   models.Actor
	Claims   []models.Claim
	Filter   Filter
	Page     int
	PerPage  int
	Location *time.Location
}

// Item is one queue row
type Item struct {
	models.Claim
	DueClass workflow.DueClass `json:"dueClass"`
}

// Page is the rendered queue
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalPages int    `json:"totalPages"`
	Total      int    `json:"total"`
	Stats      Stats  `json:"stats"`
}

// NewState returns the initial state for a viewer
func NewState(viewer models.Actor, loc *time.Location) State {
	if loc == nil {
		loc = time.UTC
	}
	return State{
		Viewer:   viewer,
		Filter:   Filter{}.Normalize(),
		Page:     1,
		PerPage:  DefaultPerPage,
		Location: loc,
	}
}

// WithClaims replaces the cached claim set
func (s State) WithClaims(claims []models.Claim) State {
	s.Claims = claims
	return s
}

// WithFilter changes the filter and goes back to the first page
func (s State) WithFilter(f Filter) State {
	s.Filter = f.Normalize()
	s.Page = 1
	return s
}

// WithPage moves to a page; View clamps it to the available range
func (s State) WithPage(page int) State {
	s.Page = page
	return s
}

// View filters, paginates and classifies the cached claims as of now
func (s State) View(now time.Time) Page {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	perPage := s.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	filtered := Apply(s.Claims, s.Viewer, s.Filter)
	rows, page, totalPages := Paginate(filtered, s.Page, perPage)

	items := make([]Item, len(rows))
	for i := range rows {
		items[i] = Item{
			Claim:    rows[i],
			DueClass: workflow.Classify(rows[i].NextFollowUp, rows[i].Status, now, loc),
		}
	}

	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      len(filtered),
		Stats:      Summarize(s.Claims, s.Viewer, now, loc),
	}
}

// Paginate returns one page of claims together with the page actually shown
// and the page count. Out-of-range pages clamp to the nearest valid page.
func Paginate(claims []models.Claim, page, perPage int) ([]models.Claim, int, int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	totalPages := (len(claims) + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	if start >= len(claims) {
		return []models.Claim{}, page, totalPages
	}
	end := start + perPage
	if end > len(claims) {
		end = len(claims)
	}
	return claims[start:end], page, totalPages
}
