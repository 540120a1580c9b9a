package adp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/connector/base"
	"github.com/hcmdata/adp-connector/pkg/connector/core"
	"github.com/hcmdata/adp-connector/pkg/connector/registry"
)

func TestSourceRegistered(t *testing.T) {
	assert.True(t, registry.HasSource("adp"))
}

func TestSourceMetadata(t *testing.T) {
	source, err := NewSource("adp", config.NewBaseConfig())
	require.NoError(t, err)

	connector, ok := source.(*Source)
	require.True(t, ok)
	assert.Equal(t, "adp", connector.Name())
	assert.Equal(t, core.ConnectorTypeSource, connector.Type())
	assert.True(t, connector.SupportsIncremental())
}

func TestDiscoverCatalog(t *testing.T) {
	source, err := NewSource("adp", config.NewBaseConfig())
	require.NoError(t, err)

	catalog, err := source.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 12)

	byName := make(map[string]core.StreamSchema, len(catalog.Streams))
	for _, s := range catalog.Streams {
		byName[s.Name] = s
		require.NotEmpty(t, s.RawSchema, "stream %s has no schema", s.Name)
		assert.True(t, gjson.ValidBytes(s.RawSchema), "stream %s schema is not valid JSON", s.Name)
	}

	workers, ok := byName["workers"]
	require.True(t, ok)
	assert.Equal(t, []string{"associateOID"}, workers.PrimaryKeys)
	assert.Empty(t, workers.ReplicationKey)

	payroll, ok := byName["payroll_output"]
	require.True(t, ok)
	assert.Equal(t, "_sdc_modified_schedule_entry_id", payroll.ReplicationKey)
}

func TestReadRequiresInitialize(t *testing.T) {
	source, err := NewSource("adp", config.NewBaseConfig())
	require.NoError(t, err)

	_, err = source.Read(context.Background())
	assert.Error(t, err)
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	source, err := NewSource("adp", config.NewBaseConfig())
	require.NoError(t, err)

	// Missing credentials
	err = source.Initialize(context.Background(), config.NewBaseConfig())
	require.Error(t, err)
	_ = source.Close(context.Background())
}

func TestRetryAdapter(t *testing.T) {
	adapter := retryAdapter{policy: &base.RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}}

	assert.Equal(t, 4, adapter.MaxAttempts())

	// Exponential growth capped at MaxDelay
	assert.Equal(t, 200*time.Millisecond, adapter.Delay(1))
	assert.Equal(t, 400*time.Millisecond, adapter.Delay(2))
	assert.Equal(t, time.Second, adapter.Delay(10))
}
