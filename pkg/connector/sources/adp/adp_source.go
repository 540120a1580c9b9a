// Package adp implements the ADP source connector. It authenticates with
// certificate-based OAuth, walks the stream graph and emits every extracted
// record on a channel.
package adp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/adp/auth"
	"github.com/hcmdata/adp-connector/pkg/adp/extract"
	"github.com/hcmdata/adp-connector/pkg/adp/schemas"
	"github.com/hcmdata/adp-connector/pkg/adp/streams"
	"github.com/hcmdata/adp-connector/pkg/clients"
	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/connector/base"
	"github.com/hcmdata/adp-connector/pkg/connector/core"
	"github.com/hcmdata/adp-connector/pkg/errors"
	"github.com/hcmdata/adp-connector/pkg/pool"
)

const version = "1.0.0"

// Source is the ADP source connector.
type Source struct {
	*base.BaseConnector

	cfg    *config.BaseConfig
	auth   *auth.Authenticator
	client *clients.HTTPClient
	defs   []*extract.Definition
	graph  *extract.Graph
}

// NewSource creates a new ADP source connector
func NewSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return &Source{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeSource, version),
		defs:          streams.Definitions(),
	}, nil
}

// Initialize validates the configuration and builds the authenticator, the
// HTTP client and the stream graph.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize base connector")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	s.auth = auth.NewAuthenticator(cfg, s.GetLogger())
	s.client = clients.NewHTTPClient(s.httpConfig(cfg), s.GetLogger())

	graph, err := extract.NewGraph(
		s.Name(),
		s.defs,
		s.client,
		s.auth,
		cfg.API.BaseURL,
		cfg.API.PageSize,
		retryAdapter{policy: s.GetRetryPolicy()},
		cfg.StartTime(),
	)
	if err != nil {
		return err
	}
	s.graph = graph

	// The health probe exercises the token lifecycle; a valid cached token
	// makes it a no-op
	s.SetHealthCheck(func(ctx context.Context) error {
		_, err := s.auth.Token(ctx)
		return err
	})

	s.UpdateHealth(true, map[string]interface{}{
		"streams":   len(s.defs),
		"base_url":  cfg.API.BaseURL,
		"page_size": cfg.API.PageSize,
	})

	s.GetLogger().Info("adp source initialized",
		zap.String("base_url", cfg.API.BaseURL),
		zap.Int("streams", len(s.defs)),
		zap.Int("page_size", cfg.API.PageSize))

	return nil
}

// httpConfig maps the connector configuration onto the HTTP client.
func (s *Source) httpConfig(cfg *config.BaseConfig) *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	hc.RequestTimeout = cfg.API.RequestTimeout
	hc.UserAgent = cfg.Credentials.UserAgent
	hc.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	if cfg.Reliability.IsRateLimited() {
		hc.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		hc.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	}
	return hc
}

// Discover returns the stream catalog with the embedded schemas.
func (s *Source) Discover(ctx context.Context) (*core.Catalog, error) {
	catalog := &core.Catalog{Streams: make([]core.StreamSchema, 0, len(s.defs))}

	for _, def := range s.defs {
		raw, err := schemas.For(def.Name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "schema lookup failed")
		}
		catalog.Streams = append(catalog.Streams, core.StreamSchema{
			Name:           def.Name,
			PrimaryKeys:    def.PrimaryKeys,
			ReplicationKey: def.ReplicationKey,
			RawSchema:      raw,
		})
	}

	return catalog, nil
}

// Read runs the full extraction in a background goroutine and streams
// records out. The consumer owns each record and must release it.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.graph == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source not initialized")
	}

	recordsChan := make(chan *pool.Record, s.cfg.API.PageSize)
	errorsChan := make(chan error, 1)

	stream := &core.RecordStream{
		Records: recordsChan,
		Errors:  errorsChan,
	}

	sink := func(name string, rec *pool.Record) error {
		select {
		case recordsChan <- rec:
			return nil
		case <-ctx.Done():
			rec.Release()
			return ctx.Err()
		}
	}

	go func() {
		defer close(recordsChan)
		defer close(errorsChan)

		if err := s.graph.Run(ctx, sink); err != nil {
			s.GetLogger().Error("extraction run failed", zap.Error(err))
			errorsChan <- err
			return
		}
		s.saveBookmarks()
	}()

	return stream, nil
}

// saveBookmarks copies the graph's replication floors into the connector
// state so the host pipeline can persist them.
func (s *Source) saveBookmarks() {
	state := s.GetState()
	bookmarks := make(map[string]interface{})
	for _, def := range s.defs {
		if def.ReplicationKey == "" {
			continue
		}
		if b := s.graph.Bookmark(def.Name); !b.IsZero() {
			bookmarks[def.Name] = b.Format(time.RFC3339)
		}
	}
	state["bookmarks"] = bookmarks
	_ = s.SetState(state)
}

// SupportsIncremental reports that bookmarked streams resume from state.
func (s *Source) SupportsIncremental() bool {
	return true
}

// Close releases the HTTP client and shuts down the base connector.
func (s *Source) Close(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.GetLogger().Warn("failed to close http client", zap.Error(err))
		}
	}
	return s.BaseConnector.Close(ctx)
}

// retryAdapter exposes the base retry policy through the extraction
// engine's narrower interface.
type retryAdapter struct {
	policy *base.RetryPolicy
}

func (r retryAdapter) MaxAttempts() int {
	return r.policy.MaxAttempts
}

func (r retryAdapter) Delay(attempt int) time.Duration {
	return r.policy.GetDelay(attempt)
}
