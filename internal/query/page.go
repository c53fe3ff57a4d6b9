package query

import (
	"encoding/base64"
	"encoding/json"
)

type cursor struct {
	Offset int `json:"o"`
}

// EncodeToken returns the opaque token for a page starting at offset.
func EncodeToken(offset int) string {
	b, _ := json.Marshal(cursor{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeToken returns the offset a token points at. Empty or malformed
// tokens decode to 0 so the caller restarts at the first page.
func DecodeToken(token string) int {
	if token == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.Offset < 0 {
		return 0
	}
	return c.Offset
}

// PageSize clamps a requested size: non-positive uses def, anything above
// maxSize is capped.
func PageSize(requested, def, maxSize int) int {
	size := requested
	if size <= 0 {
		size = def
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if size <= 0 {
		size = 1
	}
	return size
}

// Paginate slices one page out of items. The next token is nil exactly when
// the page reaches the end.
func Paginate[T any](items []T, token string, size int) ([]T, *string) {
	offset := DecodeToken(token)
	if offset > len(items) {
		offset = len(items)
	}
	end := min(offset+size, len(items))
	page := items[offset:end]
	if end >= len(items) {
		return page, nil
	}
	next := EncodeToken(end)
	return page, &next
}
