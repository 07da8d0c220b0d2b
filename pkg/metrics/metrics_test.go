package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Grant("root", "fedA", 3, false)
	c.Grant("root", "fedA", 3, true)
	c.ValueRouted("root")
	c.MessageRouted("root")
	c.MessageRouted("root")
	c.MessageDropped("root", "filter")
	c.Query("fast")
	c.SetFederates("root", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.timeGrants.WithLabelValues("root")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.iterations.WithLabelValues("root")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.valuesRouted.WithLabelValues("root")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesRouted.WithLabelValues("root")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesDrop.WithLabelValues("root", "filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("fast")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.federates.WithLabelValues("root")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.grantedTime.WithLabelValues("fedA")))
}

func TestCollectorsExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.Grant("core1", "fedB", 1.5, false)

	expected := `
# HELP fedsim_time_grants_total Total number of time grants issued
# TYPE fedsim_time_grants_total counter
fedsim_time_grants_total{node="core1"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fedsim_time_grants_total"))
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.ValueRouted("core1")
	b.ValueRouted("core1")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.valuesRouted.WithLabelValues("core1")))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.Grant("n", "f", 1, true)
		c.ValueRouted("n")
		c.MessageRouted("n")
		c.MessageDropped("n", "x")
		c.Query("ordered")
		c.SetFederates("n", 1)
	})
}
