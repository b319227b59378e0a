package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"recipehub-search/internal/metrics"
	"recipehub-search/internal/recipe"
)

const (
	maxResponseSize = 4 * 1024 * 1024 // 4MB decoded page
	maxErrorBody    = 200
)

func (c *client) SearchRecipes(ctx context.Context, f recipe.Filters, page, pageSize int) (recipe.Page, error) {
	if page < 1 {
		page = 1
	}
	q := searchParams(f.Normalize())
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}

	var out wireSearchResponse
	if err := c.get(ctx, "search", "/api/recipes/search?"+q.Encode(), &out); err != nil {
		return recipe.Page{}, err
	}

	p := recipe.Page{
		Records: make([]recipe.Recipe, 0, len(out.Recipes)),
		Total:   out.Total,
		HasMore: out.HasMore,
		Page:    out.Page,
	}
	if p.Page == 0 {
		p.Page = page
	}
	for _, r := range out.Recipes {
		p.Records = append(p.Records, r.toRecipe())
	}

	c.logger.Debug("search completed",
		zap.Int("page", p.Page),
		zap.Int("records", len(p.Records)),
		zap.Int("total", p.Total),
		zap.Bool("has_more", p.HasMore),
	)
	return p, nil
}

func (c *client) Suggestions(ctx context.Context, text string) ([]string, error) {
	q := url.Values{}
	q.Set("q", text)

	var out wireSuggestionsResponse
	if err := c.get(ctx, "suggestions", "/api/recipes/suggestions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

func (c *client) Mutate(parentCtx context.Context, m recipe.Mutation) (recipe.MutationResult, error) {
	start := time.Now()

	if !m.Action.Valid() {
		return recipe.MutationResult{}, fmt.Errorf("recipeapi: unknown action %q", m.Action)
	}

	path := "/api/recipes/" + url.PathEscape(m.RecipeID) + "/" + string(m.Action)
	if m.Action == recipe.ActionFollow {
		if m.AuthorID == "" {
			return recipe.MutationResult{}, fmt.Errorf("recipeapi: follow requires an author id")
		}
		path = "/api/users/" + url.PathEscape(m.AuthorID) + "/follow"
	}

	body, err := json.Marshal(wireMutationRequest{Active: m.Active})
	if err != nil {
		return recipe.MutationResult{}, fmt.Errorf("recipeapi: marshal mutation: %w", err)
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return recipe.MutationResult{}, fmt.Errorf("recipeapi: build HTTP request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	if m.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", m.IdempotencyKey)
	}

	// single attempt: a replayed toggle would flip the state back
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	observe("mutate", status, start)
	if err != nil {
		c.logger.Warn("mutation request failed",
			zap.String("action", string(m.Action)),
			zap.String("recipe_id", m.RecipeID),
			zap.Error(err),
		)
		return recipe.MutationResult{}, fmt.Errorf("recipeapi: mutate %s: %w", m.Action, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return recipe.MutationResult{}, err
	}

	var out wireMutationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return recipe.MutationResult{}, fmt.Errorf("recipeapi: decode mutation response: %w", err)
	}

	c.logger.Info("mutation completed",
		zap.String("action", string(m.Action)),
		zap.String("recipe_id", m.RecipeID),
		zap.Bool("success", out.Success),
		zap.Duration("duration", time.Since(start)),
	)
	return recipe.MutationResult{Success: out.Success, Message: out.Message}, nil
}

// get performs an idempotent read with retries and decodes the JSON body into out.
func (c *client) get(parentCtx context.Context, op, path string, out any) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	target := c.cfg.BaseURL + path
	doOnce := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("recipeapi: build HTTP request: %w", err)
		}
		c.setHeaders(req)
		return c.httpClient.Do(req)
	}

	resp, err := c.doWithRetry(ctx, op, doOnce)
	if err != nil {
		observe(op, 0, start)
		return err
	}
	defer resp.Body.Close()
	observe(op, resp.StatusCode, start)

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("recipeapi: decode %s response: %w", op, err)
	}
	return nil
}

func (c *client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// checkStatus turns a non-2xx response into a *StatusError.
func (c *client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	// Try to parse structured error
	var werr wireErrorResponse
	if err := json.Unmarshal(body, &werr); err == nil && werr.Error.Message != "" {
		c.logger.Error("recipe backend error",
			zap.Int("status", resp.StatusCode),
			zap.String("error_code", werr.Error.Code),
			zap.String("error_message", werr.Error.Message),
		)
		return &StatusError{Status: resp.StatusCode, Message: werr.Error.Message}
	}

	c.logger.Error("recipe backend error",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(body), maxErrorBody)),
	)
	return &StatusError{Status: resp.StatusCode, Message: truncate(string(body), maxErrorBody)}
}

func searchParams(n recipe.Filters) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", n.Query)
	set("category", n.Category)
	set("cuisine", n.Cuisine)
	set("difficulty", n.Difficulty)
	set("cookingTime", n.CookingTime)
	set("sortBy", n.SortBy)
	set("sortOrder", n.SortOrder)
	for _, t := range n.Tags {
		q.Add("tags", t)
	}
	for _, d := range n.Dietary {
		q.Add("dietary", d)
	}
	return q
}

func observe(op string, status int, start time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	metrics.UpstreamLatencySeconds.WithLabelValues(op, label).Observe(time.Since(start).Seconds())
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
