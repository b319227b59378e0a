package recipe

import (
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	maxQueryLength = 200
)

var (
	difficulties = []interface{}{"easy", "medium", "hard"}
	sortFields   = []interface{}{"relevance", "created_at", "likes", "saves", "cooking_time", "title"}
)

// Filters is the full search input. A zero-valued field means "unspecified".
type Filters struct {
	Query       string   `json:"query,omitempty" mapstructure:"query"`
	Category    string   `json:"category,omitempty" mapstructure:"category"`
	Cuisine     string   `json:"cuisine,omitempty" mapstructure:"cuisine"`
	Difficulty  string   `json:"difficulty,omitempty" mapstructure:"difficulty"`
	CookingTime string   `json:"cooking_time,omitempty" mapstructure:"cooking_time"`
	Tags        []string `json:"tags,omitempty" mapstructure:"tags"`
	Dietary     []string `json:"dietary,omitempty" mapstructure:"dietary"`
	SortBy      string   `json:"sort_by,omitempty" mapstructure:"sort_by"`
	SortOrder   string   `json:"sort_order,omitempty" mapstructure:"sort_order"`
}

// Validate checks enumerated fields. Unspecified fields are always valid.
func (f Filters) Validate() error {
	n := f.Normalize()
	return validation.ValidateStruct(&n,
		validation.Field(&n.Query, validation.RuneLength(0, maxQueryLength)),
		validation.Field(&n.Difficulty, validation.In(difficulties...)),
		validation.Field(&n.SortBy, validation.In(sortFields...)),
		validation.Field(&n.SortOrder, validation.In(SortAsc, SortDesc)),
	)
}

// Normalize returns the canonical form of f: whitespace collapsed, lower-cased,
// set-valued fields sorted and deduplicated. Two filter values that differ only
// in array order normalize to the same value.
func (f Filters) Normalize() Filters {
	return Filters{
		Query:       normalizeText(f.Query),
		Category:    normalizeText(f.Category),
		Cuisine:     normalizeText(f.Cuisine),
		Difficulty:  normalizeText(f.Difficulty),
		CookingTime: normalizeText(f.CookingTime),
		Tags:        normalizeSet(f.Tags),
		Dietary:     normalizeSet(f.Dietary),
		SortBy:      normalizeText(f.SortBy),
		SortOrder:   normalizeText(f.SortOrder),
	}
}

// Matches reports whether f satisfies the partial predicate p: every scalar
// set in p must be equal, every value listed in a set field of p must be
// present in f's field.
func (f Filters) Matches(p Filters) bool {
	f, p = f.Normalize(), p.Normalize()

	scalars := [][2]string{
		{p.Query, f.Query},
		{p.Category, f.Category},
		{p.Cuisine, f.Cuisine},
		{p.Difficulty, f.Difficulty},
		{p.CookingTime, f.CookingTime},
		{p.SortBy, f.SortBy},
		{p.SortOrder, f.SortOrder},
	}
	for _, s := range scalars {
		if s[0] != "" && s[0] != s[1] {
			return false
		}
	}

	return containsAll(f.Tags, p.Tags) && containsAll(f.Dietary, p.Dietary)
}

// IsZero reports whether no field is specified.
func (f Filters) IsZero() bool {
	n := f.Normalize()
	return n.Query == "" && n.Category == "" && n.Cuisine == "" && n.Difficulty == "" &&
		n.CookingTime == "" && len(n.Tags) == 0 && len(n.Dietary) == 0 &&
		n.SortBy == "" && n.SortOrder == ""
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalizeText(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// containsAll expects both slices normalized.
func containsAll(have, want []string) bool {
	for _, w := range want {
		i := sort.SearchStrings(have, w)
		if i >= len(have) || have[i] != w {
			return false
		}
	}
	return true
}
