package recipe

import "time"

// Action is a toggle-style social interaction on a recipe.
type Action string

const (
	ActionLike   Action = "like"
	ActionSave   Action = "save"
	ActionFollow Action = "follow"
)

// Valid reports whether a is one of the known toggle actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLike, ActionSave, ActionFollow:
		return true
	default:
		return false
	}
}

type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Recipe is a single search record. The social fields (IsLiked, Likes, ...)
// are the only ones patched after a page has been displayed.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Author      Author    `json:"author"`
	Category    string    `json:"category,omitempty"`
	Cuisine     string    `json:"cuisine,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	CookingTime int       `json:"cooking_time,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Dietary     []string  `json:"dietary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Likes             int  `json:"likes"`
	IsLiked           bool `json:"is_liked"`
	Saves             int  `json:"saves"`
	IsSaved           bool `json:"is_saved"`
	AuthorFollowers   int  `json:"author_followers"`
	IsFollowingAuthor bool `json:"is_following_author"`
}

// Clone returns a deep copy so the caller can mutate it freely.
func (r Recipe) Clone() Recipe {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Dietary != nil {
		out.Dietary = append([]string(nil), r.Dietary...)
	}
	return out
}

// Social returns the boolean state and counter that a toggle of action affects.
func (r *Recipe) Social(a Action) (active bool, count int) {
	switch a {
	case ActionLike:
		return r.IsLiked, r.Likes
	case ActionSave:
		return r.IsSaved, r.Saves
	case ActionFollow:
		return r.IsFollowingAuthor, r.AuthorFollowers
	}
	return false, 0
}

// SetSocial writes the boolean state and counter for action.
func (r *Recipe) SetSocial(a Action, active bool, count int) {
	switch a {
	case ActionLike:
		r.IsLiked, r.Likes = active, count
	case ActionSave:
		r.IsSaved, r.Saves = active, count
	case ActionFollow:
		r.IsFollowingAuthor, r.AuthorFollowers = active, count
	}
}

// Page is one page of search results as returned by the backend.
type Page struct {
	Records []Recipe `json:"records"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
	Page    int      `json:"page"`
}

// Clone deep-copies the page and its records.
func (p Page) Clone() Page {
	out := p
	if p.Records != nil {
		out.Records = make([]Recipe, len(p.Records))
		for i, r := range p.Records {
			out.Records[i] = r.Clone()
		}
	}
	return out
}

// Mutation is a single social toggle sent to the backend.
type Mutation struct {
	RecipeID       string `json:"recipe_id"`
	AuthorID       string `json:"author_id,omitempty"`
	Action         Action `json:"action"`
	Active         bool   `json:"active"`
	IdempotencyKey string `json:"-"`
}

type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
