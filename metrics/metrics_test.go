package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	t.Run("session lifecycle", func(t *testing.T) {
		m.SessionOpened()
		m.SessionOpened()
		m.SessionClosed()
		assert.Equal(t, float64(2), counterValue(t, m.sessionsAccepted))
		assert.Equal(t, float64(1), gaugeValue(t, m.sessionsActive))
	})

	t.Run("protocol counters", func(t *testing.T) {
		m.SessionRejected()
		m.FrameIn()
		m.FrameIn()
		m.FrameOut()
		m.UnknownOpcode()
		m.ProtocolViolation()
		m.OutboundOverflow()
		m.FramingError()

		assert.Equal(t, float64(1), counterValue(t, m.sessionsRejected))
		assert.Equal(t, float64(2), counterValue(t, m.framesIn))
		assert.Equal(t, float64(1), counterValue(t, m.framesOut))
		assert.Equal(t, float64(1), counterValue(t, m.unknownOpcodes))
		assert.Equal(t, float64(1), counterValue(t, m.protocolViolations))
		assert.Equal(t, float64(1), counterValue(t, m.outboundOverflows))
		assert.Equal(t, float64(1), counterValue(t, m.framingErrors))
	})

	t.Run("registered under the namespace", func(t *testing.T) {
		families, err := reg.Gather()
		require.NoError(t, err)

		names := make(map[string]bool)
		for _, f := range families {
			names[f.GetName()] = true
		}
		assert.True(t, names["l2gs_sessions_active"])
		assert.True(t, names["l2gs_sessions_rejected_total"])
	})
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionClosed()
		m.SessionRejected()
		m.FrameIn()
		m.FrameOut()
		m.UnknownOpcode()
		m.ProtocolViolation()
		m.OutboundOverflow()
		m.FramingError()
	})
}
