package metrics

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/factory"
	coremetrics "github.com/kilianp07/berthplan/core/metrics"
)

func TestFactoryUsageBackends(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "usage", Conf: map[string]any{"backend": "sqlite", "path": filepath.Join(t.TempDir(), "u.db")}},
	})
	require.NoError(t, err)
	_, ok := sink.(*UsageSink)
	assert.True(t, ok)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "usage", Conf: map[string]any{"backend": "sqlite"}}})
	assert.Error(t, err)
	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "usage", Conf: map[string]any{"backend": "redis"}}})
	assert.Error(t, err)
}

func TestFactoryInfluxRequiresURL(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"bucket": "b"}}})
	assert.Error(t, err)
}

func TestFactoryMultipleSinks(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "usage"},
	})
	require.NoError(t, err)
	_, ok := sink.(*coremetrics.MultiSink)
	assert.True(t, ok)
}
