package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	m, reg := NewMetrics()
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_CountersIncrement(t *testing.T) {
	m := NewMetricsForTesting()

	m.FilesFetched.Inc()
	m.FilesFetched.Inc()

	var pb dto.Metric
	require.NoError(t, m.FilesFetched.Write(&pb))
	assert.Equal(t, float64(2), pb.GetCounter().GetValue())
}

func TestNewMetricsForTesting_FreshEachCall(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FilesFetched.Inc()

	var pbA, pbB dto.Metric
	require.NoError(t, a.FilesFetched.Write(&pbA))
	require.NoError(t, b.FilesFetched.Write(&pbB))
	assert.Equal(t, float64(1), pbA.GetCounter().GetValue())
	assert.Equal(t, float64(0), pbB.GetCounter().GetValue())
}
