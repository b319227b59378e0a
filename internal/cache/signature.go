package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"

	"recipehub-search/internal/recipe"
)

// Key is the structured form of a query signature.
type Key struct {
	Signature string
	Hash      string
}

// String is the short form used in logs: search:<HASH_PREFIX>.
func (k Key) String() string {
	h := k.Hash
	if len(h) > 16 {
		h = h[:16]
	}
	return "search:" + h
}

// Signature builds the canonical cache key for f and page. It is pure and
// total: filters that normalize to the same value yield the same signature.
func Signature(f recipe.Filters, page int) string {
	n := f.Normalize()
	if page < 1 {
		page = 1
	}

	v := url.Values{}
	v.Set("q", n.Query)
	v.Set("category", n.Category)
	v.Set("cuisine", n.Cuisine)
	v.Set("difficulty", n.Difficulty)
	v.Set("time", n.CookingTime)
	v.Set("sort", n.SortBy)
	v.Set("order", n.SortOrder)
	v.Set("page", strconv.Itoa(page))
	// multi-valued keys keep set members unambiguous even if they contain commas
	if len(n.Tags) > 0 {
		v["tags"] = n.Tags
	}
	if len(n.Dietary) > 0 {
		v["dietary"] = n.Dietary
	}

	// Encode sorts by key
	return v.Encode()
}

// BuildKey returns the signature together with its sha256 hex digest.
func BuildKey(f recipe.Filters, page int) Key {
	sig := Signature(f, page)
	sum := sha256.Sum256([]byte(sig))
	return Key{
		Signature: sig,
		Hash:      hex.EncodeToString(sum[:]),
	}
}
