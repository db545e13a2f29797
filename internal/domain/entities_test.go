package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorMetricsRates_ZeroSamples(t *testing.T) {
	var m VendorMetrics
	assert.Zero(t, m.AcceptanceRate())
	assert.Zero(t, m.DeliverySuccessRate())
	assert.Zero(t, m.CancellationRate())
	assert.Zero(t, m.AvgResponseTimeSeconds())
}

func TestVendorMetricsRates_WithSamples(t *testing.T) {
	m := VendorMetrics{
		AssignedN:              10,
		AcceptedN:              8,
		DeliveredN:             8,
		DeliveredOKN:           7,
		CancelledByVendorN:     1,
		RespondedN:             8,
		ResponseTimeSumSeconds: 800,
	}
	assert.InDelta(t, 0.8, m.AcceptanceRate(), 1e-9)
	assert.InDelta(t, 0.875, m.DeliverySuccessRate(), 1e-9)
	assert.InDelta(t, 0.1, m.CancellationRate(), 1e-9)
	assert.InDelta(t, 100, m.AvgResponseTimeSeconds(), 1e-9)
}

func TestStageOutcome_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	o := Transient("provider unavailable", cause)
	require.True(t, errors.Is(o, cause))
	assert.Contains(t, o.Error(), "transient")
	assert.False(t, o.IsTerminal())

	ok := Ok()
	assert.True(t, ok.IsTerminal())

	soft := SoftFail("empty text")
	assert.True(t, soft.IsTerminal())
	assert.Nil(t, soft.Unwrap())
}
