package enhance

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/models"
)

// Service is the enhanced-entity resolution layer for quotes, projects and
// requests. Reads hit the data API, resolve foreign keys in memory, and are
// served from the shared cache until it clears.
type Service struct {
	source Source
	cache  *Cache
	log    *zap.SugaredLogger
}

// NewService wires a source and cache configuration.
func NewService(source Source, cfg am.Enhance, log *zap.SugaredLogger) *Service {
	return &Service{
		source: source,
		cache:  NewCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.MaxCacheSize),
		log:    log.Named("enhance"),
	}
}

// Invalidate drops the cache. Called after any write through the admin API;
// the next read rebuilds from the data API.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}

// Stats reports cache counters.
func (s *Service) Stats() CacheStats {
	return s.cache.Stats()
}

// refSet collects the foreign keys a batch of records references.
type refSet struct {
	contacts   map[string]struct{}
	properties map[string]struct{}
	projects   map[string]struct{}
}

func newRefSet() *refSet {
	return &refSet{
		contacts:   make(map[string]struct{}),
		properties: make(map[string]struct{}),
		projects:   make(map[string]struct{}),
	}
}

func (r *refSet) addContact(id string) {
	if id != "" {
		r.contacts[id] = struct{}{}
	}
}

func (r *refSet) addProperty(id string) {
	if id != "" {
		r.properties[id] = struct{}{}
	}
}

func (r *refSet) addProject(id string) {
	if id != "" {
		r.projects[id] = struct{}{}
	}
}

// refMaps holds the batch-loaded reference collections as ID→record maps
// (status options keyed by title).
type refMaps struct {
	contacts   map[string]models.Contact
	properties map[string]models.Property
	projects   map[string]models.Project
	statuses   map[string]models.StatusOption
}

// loadRefs batch-loads every referenced collection once, one goroutine per
// collection. Reference-load failures degrade to logging: the join then
// leaves those fields nil rather than failing the whole read.
func (s *Service) loadRefs(ctx context.Context, refs *refSet, statusKind string) *refMaps {
	maps := &refMaps{
		contacts:   make(map[string]models.Contact),
		properties: make(map[string]models.Property),
		projects:   make(map[string]models.Project),
		statuses:   make(map[string]models.StatusOption),
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(refs.contacts) > 0 {
		g.Go(func() error {
			contacts, err := s.source.ListContacts(gctx)
			if err != nil {
				s.log.Warnw("Failed to load referenced contacts", "error", err)
				return nil
			}
			for _, c := range contacts {
				if _, wanted := refs.contacts[c.ID]; wanted {
					maps.contacts[c.ID] = c
				}
			}
			return nil
		})
	}

	if len(refs.properties) > 0 {
		g.Go(func() error {
			properties, err := s.source.ListProperties(gctx)
			if err != nil {
				s.log.Warnw("Failed to load referenced properties", "error", err)
				return nil
			}
			for _, p := range properties {
				if _, wanted := refs.properties[p.ID]; wanted {
					maps.properties[p.ID] = p
				}
			}
			return nil
		})
	}

	if len(refs.projects) > 0 {
		g.Go(func() error {
			projects, err := s.source.ListProjects(gctx)
			if err != nil {
				s.log.Warnw("Failed to load referenced projects", "error", err)
				return nil
			}
			for _, p := range projects {
				if _, wanted := refs.projects[p.ID]; wanted {
					maps.projects[p.ID] = p
				}
			}
			return nil
		})
	}

	if statusKind != "" {
		g.Go(func() error {
			options, err := s.source.ListStatusOptions(gctx, statusKind)
			if err != nil {
				s.log.Warnw("Failed to load status options", "kind", statusKind, "error", err)
				return nil
			}
			for _, o := range options {
				maps.statuses[o.Title] = o
			}
			return nil
		})
	}

	// Goroutines never return errors; Wait is just the join point.
	_ = g.Wait()
	return maps
}

func (s *Service) lookupContact(maps *refMaps, id, role, owner string) *models.Contact {
	if id == "" {
		return nil
	}
	if c, ok := maps.contacts[id]; ok {
		return &c
	}
	s.log.Debugw("Referenced contact not found", "contact_id", id, "role", role, "record", owner)
	return nil
}

func (s *Service) lookupProperty(maps *refMaps, id, owner string) *models.Property {
	if id == "" {
		return nil
	}
	if p, ok := maps.properties[id]; ok {
		return &p
	}
	s.log.Debugw("Referenced property not found", "property_id", id, "record", owner)
	return nil
}

func (s *Service) lookupProject(maps *refMaps, id, owner string) *models.Project {
	if id == "" {
		return nil
	}
	if p, ok := maps.projects[id]; ok {
		return &p
	}
	s.log.Debugw("Referenced project not found", "project_id", id, "record", owner)
	return nil
}

func (s *Service) lookupStatus(maps *refMaps, status string) *models.StatusOption {
	if status == "" {
		return nil
	}
	if o, ok := maps.statuses[status]; ok {
		return &o
	}
	return nil
}

// ListQuotes returns all quotes with references resolved.
func (s *Service) ListQuotes(ctx context.Context) ([]EnhancedQuote, error) {
	const cacheKey = "quotes:list"
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]EnhancedQuote), nil
	}

	quotes, err := s.source.ListQuotes(ctx)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	for _, q := range quotes {
		refs.addContact(q.AgentContactID)
		refs.addContact(q.HomeownerContactID)
		refs.addProperty(q.AddressID)
		refs.addProject(q.ProjectID)
	}
	maps := s.loadRefs(ctx, refs, models.KindQuoteStatus)

	enhanced := make([]EnhancedQuote, 0, len(quotes))
	for _, q := range quotes {
		enhanced = append(enhanced, s.enhanceQuote(q, maps))
	}

	s.cache.Set(cacheKey, enhanced)
	return enhanced, nil
}

// GetQuote returns one quote with references and line items resolved.
func (s *Service) GetQuote(ctx context.Context, id string) (*EnhancedQuote, error) {
	cacheKey := "quotes:" + id
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*EnhancedQuote), nil
	}

	quote, err := s.source.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	refs.addContact(quote.AgentContactID)
	refs.addContact(quote.HomeownerContactID)
	refs.addProperty(quote.AddressID)
	refs.addProject(quote.ProjectID)
	maps := s.loadRefs(ctx, refs, models.KindQuoteStatus)

	enhanced := s.enhanceQuote(*quote, maps)

	items, err := s.source.ListQuoteItems(ctx, id)
	if err != nil {
		s.log.Warnw("Failed to load quote items", "quote_id", id, "error", err)
	} else {
		enhanced.Items = items
	}

	s.cache.Set(cacheKey, &enhanced)
	return &enhanced, nil
}

func (s *Service) enhanceQuote(q models.Quote, maps *refMaps) EnhancedQuote {
	return EnhancedQuote{
		Quote:      q,
		Agent:      s.lookupContact(maps, q.AgentContactID, "agent", "quote:"+q.ID),
		Homeowner:  s.lookupContact(maps, q.HomeownerContactID, "homeowner", "quote:"+q.ID),
		Property:   s.lookupProperty(maps, q.AddressID, "quote:"+q.ID),
		Project:    s.lookupProject(maps, q.ProjectID, "quote:"+q.ID),
		StatusMeta: s.lookupStatus(maps, q.Status),
	}
}

// ListProjects returns all projects with references resolved.
func (s *Service) ListProjects(ctx context.Context) ([]EnhancedProject, error) {
	const cacheKey = "projects:list"
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]EnhancedProject), nil
	}

	projects, err := s.source.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	for _, p := range projects {
		refs.addContact(p.AgentContactID)
		refs.addContact(p.HomeownerContactID)
		refs.addProperty(p.AddressID)
	}
	maps := s.loadRefs(ctx, refs, models.KindProjectStatus)

	enhanced := make([]EnhancedProject, 0, len(projects))
	for _, p := range projects {
		enhanced = append(enhanced, s.enhanceProject(p, maps))
	}

	s.cache.Set(cacheKey, enhanced)
	return enhanced, nil
}

// GetProject returns one project with references, comments and milestones.
func (s *Service) GetProject(ctx context.Context, id string) (*EnhancedProject, error) {
	cacheKey := "projects:" + id
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*EnhancedProject), nil
	}

	project, err := s.source.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	refs.addContact(project.AgentContactID)
	refs.addContact(project.HomeownerContactID)
	refs.addProperty(project.AddressID)
	maps := s.loadRefs(ctx, refs, models.KindProjectStatus)

	enhanced := s.enhanceProject(*project, maps)

	if comments, err := s.source.ListProjectComments(ctx, id); err != nil {
		s.log.Warnw("Failed to load project comments", "project_id", id, "error", err)
	} else {
		enhanced.Comments = comments
	}
	if milestones, err := s.source.ListProjectMilestones(ctx, id); err != nil {
		s.log.Warnw("Failed to load project milestones", "project_id", id, "error", err)
	} else {
		enhanced.Milestones = milestones
	}

	s.cache.Set(cacheKey, &enhanced)
	return &enhanced, nil
}

func (s *Service) enhanceProject(p models.Project, maps *refMaps) EnhancedProject {
	return EnhancedProject{
		Project:    p,
		Agent:      s.lookupContact(maps, p.AgentContactID, "agent", "project:"+p.ID),
		Homeowner:  s.lookupContact(maps, p.HomeownerContactID, "homeowner", "project:"+p.ID),
		Property:   s.lookupProperty(maps, p.AddressID, "project:"+p.ID),
		StatusMeta: s.lookupStatus(maps, p.Status),
	}
}

// ListRequests returns all lead requests with references resolved.
func (s *Service) ListRequests(ctx context.Context) ([]EnhancedRequest, error) {
	const cacheKey = "requests:list"
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]EnhancedRequest), nil
	}

	requests, err := s.source.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	for _, r := range requests {
		refs.addContact(r.AgentContactID)
		refs.addContact(r.HomeownerContactID)
		refs.addProperty(r.AddressID)
	}
	maps := s.loadRefs(ctx, refs, models.KindRequestStatus)

	enhanced := make([]EnhancedRequest, 0, len(requests))
	for _, r := range requests {
		enhanced = append(enhanced, s.enhanceRequest(r, maps))
	}

	s.cache.Set(cacheKey, enhanced)
	return enhanced, nil
}

// GetRequest returns one lead request with references resolved.
func (s *Service) GetRequest(ctx context.Context, id string) (*EnhancedRequest, error) {
	cacheKey := "requests:" + id
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*EnhancedRequest), nil
	}

	request, err := s.source.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	refs.addContact(request.AgentContactID)
	refs.addContact(request.HomeownerContactID)
	refs.addProperty(request.AddressID)
	maps := s.loadRefs(ctx, refs, models.KindRequestStatus)

	enhanced := s.enhanceRequest(*request, maps)
	s.cache.Set(cacheKey, &enhanced)
	return &enhanced, nil
}

func (s *Service) enhanceRequest(r models.Request, maps *refMaps) EnhancedRequest {
	return EnhancedRequest{
		Request:    r,
		Agent:      s.lookupContact(maps, r.AgentContactID, "agent", "request:"+r.ID),
		Homeowner:  s.lookupContact(maps, r.HomeownerContactID, "homeowner", "request:"+r.ID),
		Property:   s.lookupProperty(maps, r.AddressID, "request:"+r.ID),
		StatusMeta: s.lookupStatus(maps, r.Status),
	}
}
