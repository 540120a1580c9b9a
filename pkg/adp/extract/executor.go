package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/adp/auth"
	"github.com/hcmdata/adp-connector/pkg/clients"
	"github.com/hcmdata/adp-connector/pkg/errors"
	"github.com/hcmdata/adp-connector/pkg/logger"
	"github.com/hcmdata/adp-connector/pkg/metrics"
)

// TokenProvider supplies a valid bearer token, refreshing as needed.
type TokenProvider interface {
	Token(ctx context.Context) (*auth.Token, error)
}

// RetryPolicy controls retries of retryable classifications. The executor
// only consumes delays; the backoff strategy lives with the caller.
type RetryPolicy interface {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts() int
	// Delay returns the wait before the given retry attempt (1-based)
	Delay(attempt int) time.Duration
}

// EmitFunc receives each extracted record. Returning an error aborts the
// invocation; records already emitted are not suppressed.
type EmitFunc func(record map[string]interface{}) error

// executor states, one transition per loop iteration.
type execState int

const (
	stateInit execState = iota
	stateAuthenticating
	stateRequesting
	stateClassifying
	stateExtracting
	stateDone
	stateStopped
	stateFatal
)

// Executor drives one stream invocation page by page: acquire token, build
// the request from the definition and parent context, classify the
// response, extract and post-process records, and emit them lazily.
type Executor struct {
	def       *Definition
	client    *clients.HTTPClient
	tokens    TokenProvider
	baseURL   string
	pageSize  int
	retry     RetryPolicy
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewExecutor creates an executor for one stream definition.
func NewExecutor(def *Definition, client *clients.HTTPClient, tokens TokenProvider,
	baseURL string, pageSize int, retry RetryPolicy) *Executor {
	return &Executor{
		def:       def,
		client:    client,
		tokens:    tokens,
		baseURL:   baseURL,
		pageSize:  pageSize,
		retry:     retry,
		collector: metrics.NewCollector(def.Name),
		logger:    logger.Get().With(zap.String("stream", def.Name)),
	}
}

// Run executes the stream against the given parent context. It returns
// stopped=true when a classification requested that remaining dependent
// calls for the current parent record be abandoned.
func (e *Executor) Run(ctx context.Context, streamCtx Context, bookmark time.Time, emit EmitFunc) (stopped bool, err error) {
	var (
		state     = stateInit
		paginator *OffsetPaginator
		token     *auth.Token
		resp      *Response
		class     Classification
	)

	for {
		switch state {
		case stateInit:
			paginator = NewOffsetPaginator(e.pageSize)
			state = stateAuthenticating

		case stateAuthenticating:
			token, err = e.tokens.Token(ctx)
			if err != nil {
				return false, err
			}
			state = stateRequesting

		case stateRequesting:
			// Token refresh is lazy: re-check before every page
			if !token.Valid() {
				state = stateAuthenticating
				continue
			}

			resp, err = e.fetchPage(ctx, streamCtx, bookmark, token, paginator.Offset())
			if err != nil {
				return false, err
			}
			e.collector.PageFetched()
			state = stateClassifying

		case stateClassifying:
			class = Classify(resp, e.def.Rules)

			switch class.Outcome {
			case OutcomeSuccess:
				state = stateExtracting

			case OutcomeSoftSkip:
				e.logger.Warn("skipping response",
					zap.Int("status", resp.StatusCode),
					zap.String("rule", class.Message),
					zap.String("url", resp.RequestURL))
				e.collector.SoftSkip(class.Message)
				if e.def.Paginated && paginator.HasMore(resp) {
					paginator.Advance()
					state = stateRequesting
				} else {
					state = stateDone
				}

			case OutcomeStopDescendants:
				e.logger.Warn("stopping dependent calls for current parent record",
					zap.Int("status", resp.StatusCode),
					zap.String("rule", class.Message),
					zap.String("url", resp.RequestURL))
				e.collector.DescendantStop()
				state = stateStopped

			case OutcomeRetryable:
				resp, err = e.retryPage(ctx, streamCtx, bookmark, &token, paginator.Offset(), resp)
				if err != nil {
					return false, err
				}
				// Re-classify the final attempt's response
				state = stateClassifying

			case OutcomeFatal:
				state = stateFatal
			}

		case stateExtracting:
			records, rerr := resp.Records(e.def.RecordsPath)
			if rerr != nil {
				return false, rerr
			}

			for _, record := range records {
				if e.def.PostProcess != nil {
					record = e.def.PostProcess(record, streamCtx)
					if record == nil {
						continue
					}
				}
				if eerr := emit(record); eerr != nil {
					return false, eerr
				}
				e.collector.RecordExtracted(1)
			}

			if e.def.Paginated && paginator.HasMore(resp) {
				paginator.Advance()
				state = stateRequesting
			} else {
				state = stateDone
			}

		case stateDone:
			return false, nil

		case stateStopped:
			return true, nil

		case stateFatal:
			return false, errors.New(errors.ErrorTypeData, class.Message).
				WithDetail("stream", e.def.Name).
				WithDetail("status", resp.StatusCode)
		}
	}
}

// fetchPage issues a single page request and buffers the response.
func (e *Executor) fetchPage(ctx context.Context, streamCtx Context, bookmark time.Time,
	token *auth.Token, offset int) (*Response, error) {
	path, err := e.def.ResolvePath(streamCtx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if e.def.Paginated {
		params.Set("$top", strconv.Itoa(e.pageSize))
		params.Set("$skip", strconv.Itoa(offset))
	}
	if e.def.BuildParams != nil {
		for key, values := range e.def.BuildParams(streamCtx, bookmark) {
			for _, v := range values {
				params.Set(key, v)
			}
		}
	}

	requestURL := e.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token.AccessToken,
	}
	for k, v := range e.def.Headers {
		headers[k] = v
	}

	start := time.Now()
	httpResp, err := e.client.Get(ctx, requestURL, headers)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			"request failed for stream "+e.def.Name)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			"failed to read response for stream "+e.def.Name)
	}

	e.collector.ObserveRequest(http.StatusText(httpResp.StatusCode), time.Since(start))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		RequestURL: requestURL,
	}, nil
}

// retryPage re-fetches the current page with backoff until it stops
// classifying as retryable or attempts are exhausted. The final response
// is returned for normal classification; exhaustion surfaces the last
// diagnostic as a retryable error for the caller.
func (e *Executor) retryPage(ctx context.Context, streamCtx Context, bookmark time.Time,
	token **auth.Token, offset int, last *Response) (*Response, error) {
	if e.retry == nil {
		return nil, errors.New(errors.ErrorTypeRateLimit, last.ErrorMessage()).
			WithDetail("stream", e.def.Name)
	}

	for attempt := 1; attempt < e.retry.MaxAttempts(); attempt++ {
		delay := e.retry.Delay(attempt)
		e.logger.Warn("retrying page",
			zap.Int("attempt", attempt),
			zap.Int("status", last.StatusCode),
			zap.Duration("delay", delay))
		e.collector.Retry()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if !(*token).Valid() {
			refreshed, err := e.tokens.Token(ctx)
			if err != nil {
				return nil, err
			}
			*token = refreshed
		}

		resp, err := e.fetchPage(ctx, streamCtx, bookmark, *token, offset)
		if err != nil {
			return nil, err
		}
		e.collector.PageFetched()

		if Classify(resp, e.def.Rules).Outcome != OutcomeRetryable {
			return resp, nil
		}
		last = resp
	}

	return nil, errors.New(errors.ErrorTypeRateLimit, last.ErrorMessage()).
		WithDetail("stream", e.def.Name).
		WithDetail("attempts", e.retry.MaxAttempts())
}
