package pipeline

import "strings"

// StageFilterAll is the sentinel meaning "no stage filter".
const StageFilterAll = "All"

// ParseStageFilter splits a comma-separated stage list. Entries are trimmed and
// empty entries dropped. An empty input or "All" yields nil, meaning no filter.
func ParseStageFilter(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == StageFilterAll {
		return nil
	}
	parts := strings.Split(raw, ",")
	stages := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stages = append(stages, s)
		}
	}
	if len(stages) == 0 {
		return nil
	}
	return stages
}

// FilterByStage keeps the items whose stage is any of stages, preserving order.
// A nil or empty stages list keeps everything.
func FilterByStage[T any](items []T, stageOf func(T) string, stages []string) []T {
	if len(stages) == 0 {
		return items
	}
	wanted := make(map[string]struct{}, len(stages))
	for _, s := range stages {
		wanted[s] = struct{}{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := wanted[stageOf(item)]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Pagination defaults and limits for contact listing.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

// NormalizePaging applies the listing defaults: page below 1 becomes 1, limit
// below 1 becomes DefaultLimit and limit above MaxLimit is capped.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Page is one window of an already filtered result.
type Page[T any] struct {
	Items   []T
	Total   int
	Page    int
	Limit   int
	HasMore bool
}

// Paginate slices items for page and limit after normalising them. Total is the
// size of items, so it reflects whatever filtering happened before the call.
func Paginate[T any](items []T, page, limit int) Page[T] {
	page, limit = NormalizePaging(page, limit)
	total := len(items)

	result := Page[T]{Items: items[total:], Total: total, Page: page, Limit: limit}
	// pages past the end stay empty; the bound also keeps page*limit from overflowing
	if page > total/limit+1 {
		return result
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	result.Items = items[start:end]
	result.HasMore = page*limit < total
	return result
}
