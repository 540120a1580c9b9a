package extract

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetPaginatorAdvance(t *testing.T) {
	p := NewOffsetPaginator(100)

	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 100, p.PageSize())

	assert.Equal(t, 100, p.Advance())
	assert.Equal(t, 100, p.Offset())

	assert.Equal(t, 200, p.Advance())
	assert.Equal(t, 200, p.Offset())
}

func TestOffsetPaginatorDefaultPageSize(t *testing.T) {
	p := NewOffsetPaginator(0)
	assert.Equal(t, DefaultPageSize, p.PageSize())

	p = NewOffsetPaginator(-5)
	assert.Equal(t, DefaultPageSize, p.PageSize())
}

func TestOffsetPaginatorHasMore(t *testing.T) {
	p := NewOffsetPaginator(100)

	assert.False(t, p.HasMore(nil))
	assert.False(t, p.HasMore(&Response{StatusCode: http.StatusNoContent, Body: []byte(`{"workers":[]}`)}))
	assert.False(t, p.HasMore(&Response{StatusCode: http.StatusOK, Body: nil}))
	assert.True(t, p.HasMore(&Response{StatusCode: http.StatusOK, Body: []byte(`{"workers":[{"associateOID":"A1"}]}`)}))
}

func TestOffsetPaginatorHasMoreIgnoresRecordCount(t *testing.T) {
	p := NewOffsetPaginator(100)

	// A parseable page with zero records still signals another page; only
	// an empty success terminates
	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"workers":[]}`)}
	assert.True(t, p.HasMore(resp))
}
