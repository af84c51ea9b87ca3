package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/realtechee/platform/errors"
)

// listPageSize is the page size requested from the data API; the API may
// return fewer items per page and paginates with nextToken regardless.
const listPageSize = 1000

// Collection provides the generated-CRUD surface for one data API model.
// Model names are the API's table names and are already plural
// (Contacts, Properties, Quotes, ...), so operation names compose directly:
// getContacts, listContacts, createContacts, updateContacts, deleteContacts.
type Collection[T any] struct {
	client *Client
	model  string
	fields string
}

// NewCollection creates the CRUD surface for a model.
// The selection set is derived from T's JSON tags.
func NewCollection[T any](client *Client, model string) *Collection[T] {
	var zero T
	return &Collection[T]{
		client: client,
		model:  model,
		fields: fieldSelection(reflect.TypeOf(zero)),
	}
}

// fieldSelection builds a GraphQL selection set from a struct's json tags
func fieldSelection(t reflect.Type) string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "\n    ")
}

// Get fetches a single record by ID. Returns ErrNotFound for a null result.
func (col *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`query Get($id: ID!) {
  get%s(id: $id) {
    %s
  }
}`, col.model, col.fields)

	data := map[string]json.RawMessage{}
	if err := col.client.Execute(ctx, query, map[string]any{"id": id}, &data); err != nil {
		return nil, errors.Wrapf(err, "get %s %s", col.model, id)
	}

	raw, ok := data["get"+col.model]
	if !ok || string(raw) == "null" {
		return nil, errors.NewNotFound("%s %s", col.model, id)
	}

	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, errors.Wrapf(err, "decode %s %s", col.model, id)
	}
	return &item, nil
}

type listPage[T any] struct {
	Items     []T     `json:"items"`
	NextToken *string `json:"nextToken"`
}

// List fetches all records matching the filter, following nextToken
// pagination until exhausted. A nil filter lists everything.
func (col *Collection[T]) List(ctx context.Context, filter map[string]any) ([]T, error) {
	query := fmt.Sprintf(`query List($filter: Model%sFilterInput, $limit: Int, $nextToken: String) {
  list%s(filter: $filter, limit: $limit, nextToken: $nextToken) {
    items {
      %s
    }
    nextToken
  }
}`, col.model, col.model, col.fields)

	var all []T
	var nextToken *string

	for {
		variables := map[string]any{"limit": listPageSize}
		if filter != nil {
			variables["filter"] = filter
		}
		if nextToken != nil {
			variables["nextToken"] = *nextToken
		}

		data := map[string]json.RawMessage{}
		if err := col.client.Execute(ctx, query, variables, &data); err != nil {
			return nil, errors.Wrapf(err, "list %s", col.model)
		}

		var page listPage[T]
		if raw, ok := data["list"+col.model]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, errors.Wrapf(err, "decode %s page", col.model)
			}
		}

		all = append(all, page.Items...)

		if page.NextToken == nil || *page.NextToken == "" {
			break
		}
		nextToken = page.NextToken
	}

	return all, nil
}

// Create inserts a new record and returns the stored shape.
func (col *Collection[T]) Create(ctx context.Context, input map[string]any) (*T, error) {
	query := fmt.Sprintf(`mutation Create($input: Create%sInput!) {
  create%s(input: $input) {
    %s
  }
}`, col.model, col.model, col.fields)

	return col.mutate(ctx, query, "create"+col.model, map[string]any{"input": input})
}

// Update applies a patch to a record by ID and returns the stored shape.
func (col *Collection[T]) Update(ctx context.Context, id string, patch map[string]any) (*T, error) {
	query := fmt.Sprintf(`mutation Update($input: Update%sInput!) {
  update%s(input: $input) {
    %s
  }
}`, col.model, col.model, col.fields)

	input := map[string]any{"id": id}
	for k, v := range patch {
		input[k] = v
	}

	return col.mutate(ctx, query, "update"+col.model, map[string]any{"input": input})
}

// Delete removes a record by ID.
func (col *Collection[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`mutation Delete($input: Delete%sInput!) {
  delete%s(input: $input) {
    id
  }
}`, col.model, col.model)

	_, err := col.mutate(ctx, query, "delete"+col.model, map[string]any{"input": map[string]any{"id": id}})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	return nil
}

func (col *Collection[T]) mutate(ctx context.Context, query, op string, variables map[string]any) (*T, error) {
	data := map[string]json.RawMessage{}
	if err := col.client.Execute(ctx, query, variables, &data); err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}

	raw, ok := data[op]
	if !ok || string(raw) == "null" {
		return nil, errors.NewNotFound("%s returned no record", op)
	}

	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, errors.Wrapf(err, "decode %s result", op)
	}
	return &item, nil
}
