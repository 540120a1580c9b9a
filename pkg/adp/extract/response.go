package extract

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/hcmdata/adp-connector/pkg/errors"
	"github.com/hcmdata/adp-connector/pkg/json"
)

// maxDiagnosticBytes caps request/response bodies in error messages.
const maxDiagnosticBytes = 10000

// Response is the classifier's and paginator's view of one HTTP exchange.
// The body is fully buffered; ADP pages are bounded by the page size.
type Response struct {
	StatusCode  int
	Body        []byte
	RequestURL  string
	RequestBody string
}

// Records applies the stream's selection path to the body and decodes each
// element into a map. Numbers are decoded as json.Number so exact decimal
// values survive until emission.
//
// An empty success (204 or empty body) yields no records. A path selecting
// a single object (rather than an array) yields that object as one record.
func (r *Response) Records(recordsPath string) ([]map[string]interface{}, error) {
	if r.StatusCode == http.StatusNoContent || len(r.Body) == 0 {
		return nil, nil
	}

	if !gjson.ValidBytes(r.Body) {
		return nil, errors.Newf(errors.ErrorTypeData,
			"response body is not valid JSON for %s", r.RequestURL)
	}

	result := gjson.GetBytes(r.Body, recordsPath)
	if !result.Exists() {
		return nil, nil
	}

	var raws []gjson.Result
	if result.IsArray() {
		raws = result.Array()
	} else {
		raws = []gjson.Result{result}
	}

	records := make([]map[string]interface{}, 0, len(raws))
	for _, raw := range raws {
		var record map[string]interface{}
		if err := json.UnmarshalUseNumber([]byte(raw.Raw), &record); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to decode record from %s", r.RequestURL))
		}
		records = append(records, record)
	}

	return records, nil
}

// ErrorMessage builds a diagnostic string with the request URL and both
// bodies truncated. The bearer token lives in headers and is never included.
func (r *Response) ErrorMessage() string {
	return fmt.Sprintf("%d %s for request URL %s with request body %s and response content %s",
		r.StatusCode, http.StatusText(r.StatusCode), r.RequestURL,
		truncate(r.RequestBody), truncate(string(r.Body)))
}

func truncate(s string) string {
	if len(s) > maxDiagnosticBytes {
		return s[:maxDiagnosticBytes]
	}
	return s
}
