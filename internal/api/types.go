// Package api is the REST client for the recipe backend: paged search,
// type-ahead suggestions and social mutations.
package api

import (
	"context"
	"errors"
	"fmt"

	"recipehub-search/internal/recipe"
)

// ErrUpstream wraps every non-2xx answer from the backend.
var ErrUpstream = errors.New("recipeapi: upstream error")

// Client is the narrow surface the search core depends on.
type Client interface {
	SearchRecipes(ctx context.Context, f recipe.Filters, page, pageSize int) (recipe.Page, error)
	Suggestions(ctx context.Context, text string) ([]string, error)
	// Mutate is sent exactly once; it is never retried.
	Mutate(ctx context.Context, m recipe.Mutation) (recipe.MutationResult, error)
	Close() error
}

// StatusError carries the HTTP status of a failed backend call.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recipeapi: upstream %d", e.Status)
	}
	return fmt.Sprintf("recipeapi: upstream %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }
