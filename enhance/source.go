package enhance

import (
	"context"

	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/models"
)

// Source abstracts the data API reads the resolution layer performs.
// *StoreSource is the production implementation; tests stub it.
type Source interface {
	ListQuotes(ctx context.Context) ([]models.Quote, error)
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListRequests(ctx context.Context) ([]models.Request, error)
	GetRequest(ctx context.Context, id string) (*models.Request, error)

	ListContacts(ctx context.Context) ([]models.Contact, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
	ListStatusOptions(ctx context.Context, kind string) ([]models.StatusOption, error)

	ListQuoteItems(ctx context.Context, quoteID string) ([]models.QuoteItem, error)
	ListProjectComments(ctx context.Context, projectID string) ([]models.ProjectComment, error)
	ListProjectMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error)
}

// StoreSource adapts the data-API store to the Source interface.
type StoreSource struct {
	store *dataapi.Store
}

// NewStoreSource wraps a data-API store.
func NewStoreSource(store *dataapi.Store) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) ListQuotes(ctx context.Context) ([]models.Quote, error) {
	return s.store.Quotes.List(ctx, nil)
}

func (s *StoreSource) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	return s.store.Quotes.Get(ctx, id)
}

func (s *StoreSource) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.store.Projects.List(ctx, nil)
}

func (s *StoreSource) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.store.Projects.Get(ctx, id)
}

func (s *StoreSource) ListRequests(ctx context.Context) ([]models.Request, error) {
	return s.store.Requests.List(ctx, nil)
}

func (s *StoreSource) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	return s.store.Requests.Get(ctx, id)
}

func (s *StoreSource) ListContacts(ctx context.Context) ([]models.Contact, error) {
	return s.store.Contacts.List(ctx, nil)
}

func (s *StoreSource) ListProperties(ctx context.Context) ([]models.Property, error) {
	return s.store.Properties.List(ctx, nil)
}

func (s *StoreSource) ListStatusOptions(ctx context.Context, kind string) ([]models.StatusOption, error) {
	return s.store.StatusOptions.List(ctx, map[string]any{
		"kind": map[string]any{"eq": kind},
	})
}

func (s *StoreSource) ListQuoteItems(ctx context.Context, quoteID string) ([]models.QuoteItem, error) {
	return s.store.QuoteItems.List(ctx, map[string]any{
		"quoteId": map[string]any{"eq": quoteID},
	})
}

func (s *StoreSource) ListProjectComments(ctx context.Context, projectID string) ([]models.ProjectComment, error) {
	return s.store.ProjectComments.List(ctx, map[string]any{
		"projectId": map[string]any{"eq": projectID},
	})
}

func (s *StoreSource) ListProjectMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error) {
	return s.store.ProjectMilestones.List(ctx, map[string]any{
		"projectId": map[string]any{"eq": projectID},
	})
}
