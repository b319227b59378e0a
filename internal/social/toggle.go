// Package social applies like/save/follow toggles optimistically to the
// displayed results and rolls them back when the backend disagrees.
package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"recipehub-search/internal/metrics"
	"recipehub-search/internal/notify"
	"recipehub-search/internal/recipe"
)

var (
	// ErrRecordNotFound means the recipe is not in the displayed list.
	ErrRecordNotFound = errors.New("social: record not found")
	// ErrMutationRejected means the backend answered success=false.
	ErrMutationRejected = errors.New("social: mutation rejected")
)

// List is the displayed result list.
type List interface {
	Find(id string) (recipe.Recipe, bool)
	Patch(match func(recipe.Recipe) bool, fn func(*recipe.Recipe)) int
}

// Mutator is the remote mutation collaborator.
type Mutator interface {
	Mutate(ctx context.Context, m recipe.Mutation) (recipe.MutationResult, error)
}

type snapshot struct {
	active bool
	count  int
}

type Toggler struct {
	list     List
	mutator  Mutator
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewToggler(list List, mutator Mutator, notifier notify.Notifier, logger *zap.Logger) *Toggler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toggler{
		list:     list,
		mutator:  mutator,
		notifier: notifier,
		logger:   logger.Named("social"),
	}
}

// Toggle flips action on recipeID. The displayed list changes before the
// backend is called; on failure every affected record gets its captured
// value back. Follow affects every displayed record by the same author.
func (t *Toggler) Toggle(ctx context.Context, recipeID string, action recipe.Action) (recipe.Recipe, error) {
	if !action.Valid() {
		return recipe.Recipe{}, fmt.Errorf("social: unknown action %q", action)
	}

	target, ok := t.list.Find(recipeID)
	if !ok {
		return recipe.Recipe{}, ErrRecordNotFound
	}

	prev, _ := target.Social(action)
	next := !prev
	match := affected(target, action)

	// capture and write in one pass so nothing lands between the two
	snaps := make(map[string]snapshot)
	t.list.Patch(match, func(r *recipe.Recipe) {
		active, count := r.Social(action)
		if _, seen := snaps[r.ID]; !seen {
			snaps[r.ID] = snapshot{active: active, count: count}
		}
		if active != next {
			count = adjust(count, next)
		}
		r.SetSocial(action, next, count)
	})

	m := recipe.Mutation{
		RecipeID:       recipeID,
		AuthorID:       target.Author.ID,
		Action:         action,
		Active:         next,
		IdempotencyKey: uuid.NewString(),
	}
	res, err := t.mutator.Mutate(ctx, m)
	if err == nil && !res.Success {
		err = ErrMutationRejected
		if res.Message != "" {
			err = fmt.Errorf("%w: %s", ErrMutationRejected, res.Message)
		}
	}

	if err != nil {
		t.list.Patch(
			func(r recipe.Recipe) bool { _, ok := snaps[r.ID]; return ok },
			func(r *recipe.Recipe) {
				s := snaps[r.ID]
				r.SetSocial(action, s.active, s.count)
			},
		)
		metrics.MutationsTotal.WithLabelValues(string(action), "rolled_back").Inc()
		t.logger.Warn("mutation_rolled_back",
			zap.String("action", string(action)),
			zap.String("recipe_id", recipeID),
			zap.Int("records", len(snaps)),
			zap.String("idempotency_key", m.IdempotencyKey),
			zap.Error(err),
		)
		t.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Message: failureMessage(action),
		})
		current, _ := t.list.Find(recipeID)
		return current, fmt.Errorf("social: %s %s: %w", action, recipeID, err)
	}

	metrics.MutationsTotal.WithLabelValues(string(action), "confirmed").Inc()
	t.logger.Debug("mutation_confirmed",
		zap.String("action", string(action)),
		zap.String("recipe_id", recipeID),
		zap.Bool("active", next),
	)
	t.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelSuccess,
		Message: successMessage(action, next, target.Author.Name),
	})

	current, _ := t.list.Find(recipeID)
	return current, nil
}

func affected(target recipe.Recipe, action recipe.Action) func(recipe.Recipe) bool {
	if action == recipe.ActionFollow && target.Author.ID != "" {
		author := target.Author.ID
		return func(r recipe.Recipe) bool { return r.Author.ID == author }
	}
	id := target.ID
	return func(r recipe.Recipe) bool { return r.ID == id }
}

func adjust(count int, on bool) int {
	if on {
		return count + 1
	}
	if count > 0 {
		return count - 1
	}
	return 0
}

func successMessage(a recipe.Action, on bool, author string) string {
	switch a {
	case recipe.ActionLike:
		if on {
			return "Recipe liked"
		}
		return "Like removed"
	case recipe.ActionSave:
		if on {
			return "Recipe saved"
		}
		return "Recipe removed from saved"
	default:
		if author == "" {
			author = "author"
		}
		if on {
			return "Following " + author
		}
		return "Unfollowed " + author
	}
}

func failureMessage(a recipe.Action) string {
	return fmt.Sprintf("Could not update %s. Please try again.", a)
}
