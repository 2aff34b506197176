package common

import (
	"net/http"
	"strconv"
)

// ParseLimitOffset extracts limit/offset query parameters, clamping the limit
// to maxLimit. Listings page with limit+1 to detect whether more rows exist.
func ParseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		offset = o
	}
	return
}

// NextOffset computes the offset for the following page, or nil when the
// current page was the last one.
func NextOffset(offset, limit int, hasMore bool) *int {
	if !hasMore {
		return nil
	}
	next := offset + limit
	return &next
}
