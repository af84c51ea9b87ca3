package dataapi

import (
	"context"
	"sort"
	"strings"

	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/models"
)

// Store bundles the per-model collections the platform uses.
type Store struct {
	Contacts          *Collection[models.Contact]
	Properties        *Collection[models.Property]
	Requests          *Collection[models.Request]
	Projects          *Collection[models.Project]
	Quotes            *Collection[models.Quote]
	QuoteItems        *Collection[models.QuoteItem]
	ProjectComments   *Collection[models.ProjectComment]
	ProjectMilestones *Collection[models.ProjectMilestone]
	StatusOptions     *Collection[models.StatusOption]

	client *Client
}

// NewStore creates collections for all data API models.
func NewStore(client *Client) *Store {
	return &Store{
		Contacts:          NewCollection[models.Contact](client, "Contacts"),
		Properties:        NewCollection[models.Property](client, "Properties"),
		Requests:          NewCollection[models.Request](client, "Requests"),
		Projects:          NewCollection[models.Project](client, "Projects"),
		Quotes:            NewCollection[models.Quote](client, "Quotes"),
		QuoteItems:        NewCollection[models.QuoteItem](client, "QuoteItems"),
		ProjectComments:   NewCollection[models.ProjectComment](client, "ProjectComments"),
		ProjectMilestones: NewCollection[models.ProjectMilestone](client, "ProjectMilestones"),
		StatusOptions:     NewCollection[models.StatusOption](client, "BackOfficeOptions"),
		client:            client,
	}
}

// Ping checks reachability of the data API.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// FindContactByEmail returns the contact with the given email, or ErrNotFound.
// Emails are matched case-insensitively; the API stores them lowercased but
// older records migrated from CSV are not normalized.
func (s *Store) FindContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, errors.NewValidation("email is required")
	}

	contacts, err := s.Contacts.List(ctx, map[string]any{
		"email": map[string]any{"eq": normalized},
	})
	if err != nil {
		return nil, err
	}
	if len(contacts) > 0 {
		return &contacts[0], nil
	}

	// Fallback scan for unnormalized legacy records
	contacts, err = s.Contacts.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range contacts {
		if strings.EqualFold(strings.TrimSpace(contacts[i].Email), normalized) {
			return &contacts[i], nil
		}
	}

	return nil, errors.NewNotFound("contact with email %s", normalized)
}

// ActiveAssignees lists active backoffice assignee rows in display order.
func (s *Store) ActiveAssignees(ctx context.Context) ([]models.StatusOption, error) {
	options, err := s.StatusOptions.List(ctx, map[string]any{
		"kind": map[string]any{"eq": models.KindAssignee},
	})
	if err != nil {
		return nil, err
	}

	active := options[:0]
	for _, opt := range options {
		if opt.Active {
			active = append(active, opt)
		}
	}
	sortStatusOptions(active)
	return active, nil
}

// sortStatusOptions orders lookup rows by their configured display order
func sortStatusOptions(options []models.StatusOption) {
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Order < options[j].Order
	})
}
