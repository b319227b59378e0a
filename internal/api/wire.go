package api

import (
	"time"

	"recipehub-search/internal/recipe"
)

// Shapes exchanged with the recipe REST backend (camelCase JSON).

type wireAuthor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Followers int    `json:"followers"`
}

type wireRecipe struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	Author      wireAuthor `json:"author"`
	Category    string     `json:"category,omitempty"`
	Cuisine     string     `json:"cuisine,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	CookingTime int        `json:"cookingTime,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Dietary     []string   `json:"dietaryRestrictions,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	LikesCount        int  `json:"likesCount"`
	IsLiked           bool `json:"isLiked"`
	SavesCount        int  `json:"savesCount"`
	IsSaved           bool `json:"isSaved"`
	IsFollowingAuthor bool `json:"isFollowingAuthor"`
}

type wireSearchResponse struct {
	Recipes []wireRecipe `json:"recipes"`
	Total   int          `json:"total"`
	HasMore bool         `json:"hasMore"`
	Page    int          `json:"page"`
}

type wireSuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type wireMutationRequest struct {
	Active bool `json:"active"`
}

type wireMutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type wireErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (w wireRecipe) toRecipe() recipe.Recipe {
	return recipe.Recipe{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		ImageURL:    w.ImageURL,
		SourceURL:   w.SourceURL,
		Author: recipe.Author{
			ID:        w.Author.ID,
			Name:      w.Author.Name,
			AvatarURL: w.Author.AvatarURL,
		},
		Category:          w.Category,
		Cuisine:           w.Cuisine,
		Difficulty:        w.Difficulty,
		CookingTime:       w.CookingTime,
		Tags:              w.Tags,
		Dietary:           w.Dietary,
		CreatedAt:         w.CreatedAt,
		Likes:             w.LikesCount,
		IsLiked:           w.IsLiked,
		Saves:             w.SavesCount,
		IsSaved:           w.IsSaved,
		AuthorFollowers:   w.Author.Followers,
		IsFollowingAuthor: w.IsFollowingAuthor,
	}
}
