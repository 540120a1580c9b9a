package extract

import "net/http"

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 100

// OffsetPaginator is an offset cursor over $top/$skip pagination. A fresh
// paginator is created per stream invocation at offset 0 and discarded when
// the invocation completes.
type OffsetPaginator struct {
	offset   int
	pageSize int
}

// NewOffsetPaginator creates a paginator starting at offset 0.
func NewOffsetPaginator(pageSize int) *OffsetPaginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &OffsetPaginator{pageSize: pageSize}
}

// HasMore reports whether another page should be requested. It is false
// exactly when the response is an empty success (204 or an empty body).
//
// The decision is driven purely by status, not by record count: a page
// whose JSON parses but yields zero extracted records still counts as
// "has more", and termination relies on the API eventually answering with
// an empty success. This mirrors the upstream API's pagination signaling
// and is intentional.
func (p *OffsetPaginator) HasMore(resp *Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode != http.StatusNoContent && len(resp.Body) > 0
}

// Offset returns the current skip value.
func (p *OffsetPaginator) Offset() int {
	return p.offset
}

// PageSize returns the fixed page size.
func (p *OffsetPaginator) PageSize() int {
	return p.pageSize
}

// Advance moves the cursor forward by exactly one page size. The cursor
// never shrinks or resets mid-run.
func (p *OffsetPaginator) Advance() int {
	p.offset += p.pageSize
	return p.offset
}
