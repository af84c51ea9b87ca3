package enhance

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/models"
)

// stubSource serves fixed records and counts calls so tests can assert on
// cache behavior.
type stubSource struct {
	quotes     []models.Quote
	projects   []models.Project
	requests   []models.Request
	contacts   []models.Contact
	properties []models.Property
	statuses   []models.StatusOption
	items      []models.QuoteItem
	comments   []models.ProjectComment
	milestones []models.ProjectMilestone

	listQuoteCalls   int
	listContactCalls int
}

func (s *stubSource) ListQuotes(ctx context.Context) ([]models.Quote, error) {
	s.listQuoteCalls++
	return s.quotes, nil
}

func (s *stubSource) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	for _, q := range s.quotes {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, errors.NewNotFound("quote %s", id)
}

func (s *stubSource) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.projects, nil
}

func (s *stubSource) GetProject(ctx context.Context, id string) (*models.Project, error) {
	for _, p := range s.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.NewNotFound("project %s", id)
}

func (s *stubSource) ListRequests(ctx context.Context) ([]models.Request, error) {
	return s.requests, nil
}

func (s *stubSource) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	for _, r := range s.requests {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.NewNotFound("request %s", id)
}

func (s *stubSource) ListContacts(ctx context.Context) ([]models.Contact, error) {
	s.listContactCalls++
	return s.contacts, nil
}

func (s *stubSource) ListProperties(ctx context.Context) ([]models.Property, error) {
	return s.properties, nil
}

func (s *stubSource) ListStatusOptions(ctx context.Context, kind string) ([]models.StatusOption, error) {
	var matched []models.StatusOption
	for _, o := range s.statuses {
		if o.Kind == kind {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

func (s *stubSource) ListQuoteItems(ctx context.Context, quoteID string) ([]models.QuoteItem, error) {
	var matched []models.QuoteItem
	for _, item := range s.items {
		if item.QuoteID == quoteID {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func (s *stubSource) ListProjectComments(ctx context.Context, projectID string) ([]models.ProjectComment, error) {
	return s.comments, nil
}

func (s *stubSource) ListProjectMilestones(ctx context.Context, projectID string) ([]models.ProjectMilestone, error) {
	return s.milestones, nil
}

func fixtureSource() *stubSource {
	return &stubSource{
		quotes: []models.Quote{
			{
				ID:                 "q-1",
				QuoteNumber:        101,
				Status:             models.QuoteStatusSent,
				AgentContactID:     "c-agent",
				HomeownerContactID: "c-owner",
				AddressID:          "p-1",
				ProjectID:          "pr-1",
			},
			{ID: "q-2", QuoteNumber: 102, Status: models.QuoteStatusDraft},
		},
		projects: []models.Project{
			{ID: "pr-1", Title: "Kitchen remodel", Status: "In Progress",
				AgentContactID: "c-agent", AddressID: "p-1"},
		},
		requests: []models.Request{
			{ID: "r-1", Status: models.RequestStatusNew,
				AgentContactID: "c-agent", AddressID: "p-1"},
		},
		contacts: []models.Contact{
			{ID: "c-agent", FullName: "Ava Agent", Email: "ava@example.com"},
			{ID: "c-owner", FullName: "Oscar Owner", Email: "oscar@example.com"},
		},
		properties: []models.Property{
			{ID: "p-1", PropertyFullAddress: "12 Oak St, Palo Alto CA"},
		},
		statuses: []models.StatusOption{
			{ID: "s-1", Kind: models.KindQuoteStatus, Title: models.QuoteStatusSent, Order: 2},
			{ID: "s-2", Kind: models.KindRequestStatus, Title: models.RequestStatusNew, Order: 1},
		},
		items: []models.QuoteItem{
			{ID: "qi-1", QuoteID: "q-1", Name: "Cabinets", Total: 8000},
		},
	}
}

func newTestService(source Source) *Service {
	return NewService(source, am.Enhance{CacheTTLSeconds: 300, MaxCacheSize: 100}, zap.NewNop().Sugar())
}

func TestListQuotesResolvesReferences(t *testing.T) {
	source := fixtureSource()
	svc := newTestService(source)

	quotes, err := svc.ListQuotes(context.Background())
	if err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	q1 := quotes[0]
	if q1.Agent == nil || q1.Agent.FullName != "Ava Agent" {
		t.Errorf("expected agent resolved, got %+v", q1.Agent)
	}
	if q1.Homeowner == nil || q1.Homeowner.FullName != "Oscar Owner" {
		t.Errorf("expected homeowner resolved, got %+v", q1.Homeowner)
	}
	if q1.Property == nil || q1.Property.PropertyFullAddress != "12 Oak St, Palo Alto CA" {
		t.Errorf("expected property resolved, got %+v", q1.Property)
	}
	if q1.Project == nil || q1.Project.Title != "Kitchen remodel" {
		t.Errorf("expected project resolved, got %+v", q1.Project)
	}
	if q1.StatusMeta == nil || q1.StatusMeta.Order != 2 {
		t.Errorf("expected status metadata resolved, got %+v", q1.StatusMeta)
	}

	// q-2 has no references: fields stay nil, no error
	q2 := quotes[1]
	if q2.Agent != nil || q2.Property != nil || q2.Project != nil {
		t.Error("expected nil references on bare quote")
	}
}

func TestListQuotesServedFromCache(t *testing.T) {
	source := fixtureSource()
	svc := newTestService(source)

	if _, err := svc.ListQuotes(context.Background()); err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if _, err := svc.ListQuotes(context.Background()); err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}

	if source.listQuoteCalls != 1 {
		t.Errorf("expected 1 source call, got %d", source.listQuoteCalls)
	}
	stats := svc.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 cache hit, got %d", stats.Hits)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	source := fixtureSource()
	svc := newTestService(source)

	svc.ListQuotes(context.Background())
	svc.Invalidate()
	svc.ListQuotes(context.Background())

	if source.listQuoteCalls != 2 {
		t.Errorf("expected reload after invalidate, got %d calls", source.listQuoteCalls)
	}
}

func TestGetQuoteIncludesItems(t *testing.T) {
	svc := newTestService(fixtureSource())

	quote, err := svc.GetQuote(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if len(quote.Items) != 1 || quote.Items[0].Name != "Cabinets" {
		t.Errorf("expected quote items loaded, got %+v", quote.Items)
	}
	if quote.Agent == nil {
		t.Error("expected agent resolved on single lookup")
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	svc := newTestService(fixtureSource())
	_, err := svc.GetQuote(context.Background(), "q-missing")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestDanglingReferenceLeftNil(t *testing.T) {
	source := fixtureSource()
	source.quotes[0].AgentContactID = "c-deleted"
	svc := newTestService(source)

	quotes, err := svc.ListQuotes(context.Background())
	if err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if quotes[0].Agent != nil {
		t.Error("dangling contact reference should resolve to nil")
	}
	if quotes[0].Homeowner == nil {
		t.Error("other references should still resolve")
	}
}

func TestGetProjectIncludesChildren(t *testing.T) {
	source := fixtureSource()
	source.comments = []models.ProjectComment{{ID: "pc-1", ProjectID: "pr-1", Comment: "Demo done"}}
	source.milestones = []models.ProjectMilestone{{ID: "pm-1", ProjectID: "pr-1", Name: "Demolition", IsComplete: true}}
	svc := newTestService(source)

	project, err := svc.GetProject(context.Background(), "pr-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(project.Comments) != 1 || len(project.Milestones) != 1 {
		t.Errorf("expected children loaded, got %d comments / %d milestones",
			len(project.Comments), len(project.Milestones))
	}
	if project.Agent == nil || project.Property == nil {
		t.Error("expected project references resolved")
	}
}

func TestListRequestsResolvesStatusMeta(t *testing.T) {
	svc := newTestService(fixtureSource())

	requests, err := svc.ListRequests(context.Background())
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	if requests[0].StatusMeta == nil || requests[0].StatusMeta.Title != models.RequestStatusNew {
		t.Errorf("expected request status metadata, got %+v", requests[0].StatusMeta)
	}
}

func TestGetRequestCachedSeparatelyFromList(t *testing.T) {
	source := fixtureSource()
	svc := newTestService(source)

	if _, err := svc.GetRequest(context.Background(), "r-1"); err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if _, err := svc.GetRequest(context.Background(), "r-1"); err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}

	if svc.Stats().Hits != 1 {
		t.Errorf("expected second lookup served from cache, stats: %+v", svc.Stats())
	}
}
