package enhance

import "github.com/realtechee/platform/models"

// EnhancedQuote is a quote with its referenced entities resolved. Unresolved
// references stay nil; the admin UI renders placeholders for them.
type EnhancedQuote struct {
	models.Quote

	Agent      *models.Contact      `json:"agent,omitempty"`
	Homeowner  *models.Contact      `json:"homeowner,omitempty"`
	Property   *models.Property     `json:"property,omitempty"`
	Project    *models.Project      `json:"project,omitempty"`
	StatusMeta *models.StatusOption `json:"statusMeta,omitempty"`

	// Items is populated on single-quote lookups only.
	Items []models.QuoteItem `json:"items,omitempty"`
}

// EnhancedProject is a project with its referenced entities resolved.
type EnhancedProject struct {
	models.Project

	Agent      *models.Contact      `json:"agent,omitempty"`
	Homeowner  *models.Contact      `json:"homeowner,omitempty"`
	Property   *models.Property     `json:"property,omitempty"`
	StatusMeta *models.StatusOption `json:"statusMeta,omitempty"`

	// Comments and Milestones are populated on single-project lookups only.
	Comments   []models.ProjectComment   `json:"comments,omitempty"`
	Milestones []models.ProjectMilestone `json:"milestones,omitempty"`
}

// EnhancedRequest is a lead request with its referenced entities resolved.
type EnhancedRequest struct {
	models.Request

	Agent      *models.Contact      `json:"agent,omitempty"`
	Homeowner  *models.Contact      `json:"homeowner,omitempty"`
	Property   *models.Property     `json:"property,omitempty"`
	StatusMeta *models.StatusOption `json:"statusMeta,omitempty"`
}
