package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcmdata/adp-connector/pkg/pool"
)

type emittedRecord struct {
	stream string
	data   map[string]interface{}
	custom map[string]interface{}
}

// captureSink copies what it needs and releases every record.
func captureSink(out *[]emittedRecord) Sink {
	return func(stream string, rec *pool.Record) error {
		data := make(map[string]interface{}, len(rec.Data))
		for k, v := range rec.Data {
			data[k] = v
		}
		custom := make(map[string]interface{}, len(rec.Metadata.Custom))
		for k, v := range rec.Metadata.Custom {
			custom[k] = v
		}
		*out = append(*out, emittedRecord{stream: stream, data: data, custom: custom})
		rec.Release()
		return nil
	}
}

func newTestGraph(t *testing.T, defs []*Definition, server *httptest.Server, startDate time.Time) *Graph {
	t.Helper()
	g, err := NewGraph("adp", defs, newTestClient(t), &staticTokens{}, server.URL, 100, fastRetry{attempts: 2}, startDate)
	require.NoError(t, err)
	return g
}

func TestGraphValidation(t *testing.T) {
	_, err := NewGraph("adp", []*Definition{
		{Name: "workers"},
		{Name: "workers"},
	}, nil, nil, "", 100, nil, time.Time{})
	assert.Error(t, err)

	_, err = NewGraph("adp", []*Definition{
		{Name: "child", Parent: "missing"},
	}, nil, nil, "", 100, nil, time.Time{})
	assert.Error(t, err)
}

func TestGraphParentChild(t *testing.T) {
	var childPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/hr/v2/workers":
			if r.URL.Query().Get("$skip") == "0" {
				w.Write([]byte(`{"workers":[{"associateOID":"A1"},{"associateOID":"A2"}]}`))
			} else {
				w.WriteHeader(http.StatusNoContent)
			}
		case strings.HasSuffix(r.URL.Path, "/pay-distributions"):
			childPaths = append(childPaths, r.URL.Path)
			w.Write([]byte(`{"payDistributions":[{"itemID":"D-` + r.URL.Path + `"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	defs := []*Definition{
		{
			Name:        "workers",
			Path:        "/hr/v2/workers",
			RecordsPath: "workers",
			Paginated:   true,
			ChildContext: func(record map[string]interface{}) Context {
				return Context{"_sdc_worker_aoid": record["associateOID"].(string)}
			},
		},
		{
			Name:        "pay_distribution",
			Path:        "/payroll/v2/workers/{_sdc_worker_aoid}/pay-distributions",
			RecordsPath: "payDistributions",
			Parent:      "workers",
		},
	}

	var emitted []emittedRecord
	g := newTestGraph(t, defs, server, time.Time{})
	require.NoError(t, g.Run(context.Background(), captureSink(&emitted)))

	// Child runs once per parent record, interleaved depth first
	assert.Equal(t, []string{
		"/payroll/v2/workers/A1/pay-distributions",
		"/payroll/v2/workers/A2/pay-distributions",
	}, childPaths)

	var streams []string
	for _, rec := range emitted {
		streams = append(streams, rec.stream)
	}
	assert.Equal(t, []string{"workers", "pay_distribution", "workers", "pay_distribution"}, streams)

	// Child records carry the parent context in metadata
	assert.Equal(t, "A1", emitted[1].custom["_sdc_worker_aoid"])
	assert.Equal(t, "A2", emitted[3].custom["_sdc_worker_aoid"])
}

func TestGraphSiblingStop(t *testing.T) {
	var accCalls, detailCalls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		itemID := r.URL.Query().Get("itemID")
		switch r.URL.Path {
		case "/payrolls":
			w.Write([]byte(`{"payrollOutputs":[{"itemID":"P1"},{"itemID":"P2"}]}`))
		case "/acc":
			accCalls = append(accCalls, itemID)
			if itemID == "P1" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"confirmMessage":{"processMessages":[{"developerMessage":{"codeValue":"PAYGEN00030"}}]}}`))
				return
			}
			w.Write([]byte(`{"payrollOutputs":[{"itemID":"` + itemID + `-acc"}]}`))
		case "/detail":
			detailCalls = append(detailCalls, itemID)
			w.Write([]byte(`{"payrollOutputs":[{"itemID":"` + itemID + `-detail"}]}`))
		}
	}))
	defer server.Close()

	defs := []*Definition{
		{
			Name:        "payroll_output",
			Path:        "/payrolls",
			RecordsPath: "payrollOutputs",
			ChildContext: func(record map[string]interface{}) Context {
				return Context{"_sdc_payroll_item_id": record["itemID"].(string)}
			},
		},
		{
			Name:        "payroll_output_acc",
			Path:        "/acc",
			RecordsPath: "payrollOutputs",
			Parent:      "payroll_output",
			BuildParams: itemIDParam,
			Rules: []Rule{
				{
					Status:   http.StatusBadRequest,
					BodyPath: "confirmMessage.processMessages.#.developerMessage.codeValue",
					Equals:   "PAYGEN00030",
					Action:   ActionStopDescendants,
				},
			},
		},
		{
			Name:        "payroll_output_detail",
			Path:        "/detail",
			RecordsPath: "payrollOutputs",
			Parent:      "payroll_output",
			BuildParams: itemIDParam,
		},
	}

	var emitted []emittedRecord
	g := newTestGraph(t, defs, server, time.Time{})
	require.NoError(t, g.Run(context.Background(), captureSink(&emitted)))

	// P1's stop abandons its remaining sibling; P2 runs the full set
	assert.Equal(t, []string{"P1", "P2"}, accCalls)
	assert.Equal(t, []string{"P2"}, detailCalls)
}

func TestGraphBookmarkAdvance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":[` +
			`{"id":"1","modifiedAt":"2026-03-01T00:00:00Z"},` +
			`{"id":"2","modifiedAt":"2026-05-01T00:00:00Z"},` +
			`{"id":"3","modifiedAt":"2026-04-01T00:00:00Z"}]}`))
	}))
	defer server.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	defs := []*Definition{
		{
			Name:           "events",
			Path:           "/events",
			RecordsPath:    "events",
			ReplicationKey: "modifiedAt",
		},
	}

	g := newTestGraph(t, defs, server, start)
	assert.Equal(t, start, g.Bookmark("events"))

	var emitted []emittedRecord
	require.NoError(t, g.Run(context.Background(), captureSink(&emitted)))

	// The bookmark holds the maximum replication value, not the last seen
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), g.Bookmark("events"))
}

func TestGraphRootOrder(t *testing.T) {
	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	defs := []*Definition{
		{Name: "first", Path: "/first", RecordsPath: "items"},
		{Name: "second", Path: "/second", RecordsPath: "items"},
		{Name: "third", Path: "/third", RecordsPath: "items"},
	}

	g := newTestGraph(t, defs, server, time.Time{})
	require.NoError(t, g.Run(context.Background(), func(string, *pool.Record) error { return nil }))

	assert.Equal(t, []string{"/first", "/second", "/third"}, order)
}

// itemIDParam threads the parent payroll item into the query string.
func itemIDParam(ctx Context, _ time.Time) url.Values {
	return url.Values{"itemID": []string{ctx["_sdc_payroll_item_id"]}}
}
