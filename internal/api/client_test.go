package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"recipehub-search/internal/recipe"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     srv.URL + "/",
		APIKey:      "test-key",
		MaxRetries:  retries,
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected validation error for empty BaseURL")
	}
	if _, err := NewClient(Config{BaseURL: "ftp://recipes"}, nil); err == nil {
		t.Fatalf("expected validation error for non-http BaseURL")
	}
}

func TestSearchRecipesSuccess(t *testing.T) {
	t.Parallel()

	var gotQuery map[string][]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recipes/search" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")

		resp := wireSearchResponse{
			Recipes: []wireRecipe{{
				ID:         "r1",
				Title:      "Pasta",
				Author:     wireAuthor{ID: "a1", Name: "Ada", Followers: 40},
				LikesCount: 5,
				IsLiked:    true,
				Tags:       []string{"quick"},
			}},
			Total:   13,
			HasMore: true,
			Page:    2,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)

	f := recipe.Filters{Query: "  Pasta ", Tags: []string{"vegan", "quick"}, SortBy: "likes"}
	page, err := c.SearchRecipes(context.Background(), f, 2, 12)
	if err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected Authorization header: %s", gotAuth)
	}
	if gotQuery["q"][0] != "pasta" || gotQuery["page"][0] != "2" || gotQuery["limit"][0] != "12" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if len(gotQuery["tags"]) != 2 || gotQuery["tags"][0] != "quick" {
		t.Fatalf("tags not sent as repeated sorted params: %v", gotQuery["tags"])
	}
	if _, ok := gotQuery["category"]; ok {
		t.Fatalf("unspecified fields must be omitted: %v", gotQuery)
	}

	if page.Total != 13 || !page.HasMore || page.Page != 2 || len(page.Records) != 1 {
		t.Fatalf("unexpected page: %#v", page)
	}
	r := page.Records[0]
	if r.Likes != 5 || !r.IsLiked || r.Author.ID != "a1" || r.AuthorFollowers != 40 {
		t.Fatalf("recipe not mapped correctly: %#v", r)
	}
}

func TestSearchRecipesRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(wireSearchResponse{Total: 0, Page: 1})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	if _, err := c.SearchRecipes(context.Background(), recipe.Filters{}, 1, 12); err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSearchRecipesClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad sort","code":"invalid"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	_, err := c.SearchRecipes(context.Background(), recipe.Filters{}, 1, 12)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest || se.Message != "bad sort" {
		t.Fatalf("unexpected status error: %#v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestSuggestions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recipes/suggestions" || r.URL.Query().Get("q") != "pa" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"suggestions":["pasta","paella"]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	got, err := c.Suggestions(context.Background(), "pa")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(got) != 2 || got[0] != "pasta" {
		t.Fatalf("unexpected suggestions: %v", got)
	}
}

func TestMutateSendsOnceWithIdempotencyKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var gotKey string
	var gotBody wireMutationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/api/recipes/r1/like" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	_, err := c.Mutate(context.Background(), recipe.Mutation{
		RecipeID:       "r1",
		Action:         recipe.ActionLike,
		Active:         true,
		IdempotencyKey: "key-1",
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("mutations must never be retried, got %d attempts", got)
	}
	if gotKey != "key-1" || !gotBody.Active {
		t.Fatalf("unexpected request: key=%q body=%#v", gotKey, gotBody)
	}
}

func TestMutateFollowTargetsAuthor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/a1/follow" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"success":false,"message":"blocked"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	res, err := c.Mutate(context.Background(), recipe.Mutation{
		RecipeID: "r1",
		AuthorID: "a1",
		Action:   recipe.ActionFollow,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if res.Success || res.Message != "blocked" {
		t.Fatalf("unexpected result: %#v", res)
	}

	if _, err := c.Mutate(context.Background(), recipe.Mutation{RecipeID: "r1", Action: recipe.ActionFollow}); err == nil {
		t.Fatalf("expected error for follow without author id")
	}
}

func TestShouldRetryStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]bool{
		0:                              true,
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for status, want := range cases {
		if got := shouldRetryStatus(status); got != want {
			t.Fatalf("shouldRetryStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	if got := parseRetryAfter(resp); got != 0 {
		t.Fatalf("missing header: got %v", got)
	}
	resp.Header.Set("Retry-After", "3")
	if got := parseRetryAfter(resp); got != 3*time.Second {
		t.Fatalf("seconds: got %v", got)
	}
	resp.Header.Set("Retry-After", "100000")
	if got := parseRetryAfter(resp); got != 5*time.Minute {
		t.Fatalf("cap: got %v", got)
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 20; attempt++ {
		got := computeBackoff(10*time.Millisecond, attempt)
		if got < 0 || got > 30*time.Second {
			t.Fatalf("attempt %d: backoff %v out of bounds", attempt, got)
		}
	}
}
