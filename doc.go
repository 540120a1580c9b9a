// Package adpconnector provides a data extraction connector for the ADP
// HR and payroll REST APIs, built for feeding downstream EL pipelines.
//
// The connector handles the full ADP integration surface:
//   - Certificate-based OAuth 2.0 client-credentials authentication with
//     transparent token refresh
//   - Offset pagination ($top/$skip) across paginated endpoints
//     pay_data_input, payroll_output and payroll_output_acc
//   - A hierarchical stream graph: per-worker and per-payroll child
//     streams run depth-first against each parent record
//   - Response classification with per-stream rules for soft-skipping
//     known transient API conditions and stopping dependent streams
//
// # Quick Start
//
// Run an extraction from the command line:
//
//	adp-connector extract --config config.yaml
//
// Or embed the source in Go:
//
//	import (
//	    "context"
//	    "github.com/hcmdata/adp-connector/pkg/config"
//	    "github.com/hcmdata/adp-connector/pkg/connector/registry"
//	    _ "github.com/hcmdata/adp-connector/pkg/connector/sources/adp"
//	)
//
//	cfg, _ := config.Load("config.yaml")
//	source, _ := registry.CreateSource("adp", cfg)
//	_ = source.Initialize(context.Background(), cfg)
//	stream, _ := source.Read(context.Background())
//	for record := range stream.Records {
//	    // consume record, then release it back to the pool
//	    record.Release()
//	}
//
// # Key Packages
//
//	pkg/adp/auth      - Certificate-based OAuth token lifecycle
//	pkg/adp/extract   - Paginator, response classifier, stream executor and graph
//	pkg/adp/streams   - Declarative definitions for the twelve ADP streams
//	pkg/adp/schemas   - Embedded JSON Schema per stream
//	pkg/connector     - Source framework: base connector, registry, ADP source
//	pkg/clients       - HTTP client with rate limiting and circuit breaking
//	pkg/config        - Unified configuration management
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Extraction metrics collection
//
// # Streams
//
// Root streams: workers, job_requisition, department, pay_data_input,
// payroll_output, questionnaire.
//
// Child streams: worker_demographic, pay_distribution, payroll_instruction
// and us_tax_profile (per worker), job_application (per requisition),
// payroll_output_acc (per payroll output item).
//
// # Configuration
//
// Configuration loads from a YAML file with ADP_ environment overrides:
//
//	type BaseConfig struct {
//	    Credentials   CredentialsConfig   // Client ID/secret, certificate pair
//	    API           APIConfig           // Base URL, token URL, page size
//	    Reliability   ReliabilityConfig   // Retries, rate limit, circuit breaker
//	    Observability ObservabilityConfig // Log level, metrics endpoint
//	}
package adpconnector
