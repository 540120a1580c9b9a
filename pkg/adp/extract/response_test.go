package extract

import (
	gojson "encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsFromArrayPath(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"workers":[{"associateOID":"A1"},{"associateOID":"A2"}]}`),
	}

	records, err := resp.Records("workers")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0]["associateOID"])
	assert.Equal(t, "A2", records[1]["associateOID"])
}

func TestRecordsFromRootObject(t *testing.T) {
	// Some endpoints answer with a single object instead of a list
	resp := &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"questionnaireID":"Q1","sections":[]}`),
	}

	records, err := resp.Records("@this")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Q1", records[0]["questionnaireID"])
}

func TestRecordsEmptySuccess(t *testing.T) {
	records, err := (&Response{StatusCode: http.StatusNoContent, Body: []byte(`{}`)}).Records("workers")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = (&Response{StatusCode: http.StatusOK, Body: nil}).Records("workers")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordsMissingPath(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"meta":{"totalNumber":0}}`)}
	records, err := resp.Records("workers")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordsInvalidJSON(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`<html>`),
		RequestURL: "https://api.adp.com/hr/v2/workers",
	}
	_, err := resp.Records("workers")
	assert.Error(t, err)
}

func TestRecordsPreserveDecimalText(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"payDistributions":[{"itemID":"1","depositAmount":{"amountValue":12.50}}]}`),
	}

	records, err := resp.Records("payDistributions")
	require.NoError(t, err)
	require.Len(t, records, 1)

	amount := records[0]["depositAmount"].(map[string]interface{})["amountValue"]
	num, ok := amount.(gojson.Number)
	require.True(t, ok, "amounts must decode as json.Number, got %T", amount)
	assert.Equal(t, "12.50", num.String())
}

func TestErrorMessageTruncation(t *testing.T) {
	big := strings.Repeat("x", maxDiagnosticBytes+500)
	resp := &Response{
		StatusCode:  http.StatusBadRequest,
		Body:        []byte(big),
		RequestURL:  "https://api.adp.com/payroll/v2/payroll-output",
		RequestBody: big,
	}

	msg := resp.ErrorMessage()
	assert.Contains(t, msg, "400")
	assert.Contains(t, msg, resp.RequestURL)
	// Both bodies are capped independently
	assert.Less(t, len(msg), 2*(maxDiagnosticBytes+500))
}
