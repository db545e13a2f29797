package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

func TestParseQuantity_AcceptsVariousForms(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"integer", 5, 5},
		{"decimal string", "2.5", 2.5},
		{"fraction", "1/2", 0.5},
		{"spelled", "twelve", 12},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseQuantity(c.in, DefaultMaxQuantity)
			require.NoError(t, err)
			assert.InDelta(t, c.want, got, 1e-9)
		})
	}
}

func TestParseQuantity_RejectsOutOfRange(t *testing.T) {
	_, err := ParseQuantity(0, DefaultMaxQuantity)
	assert.Error(t, err)
	_, err = ParseQuantity(1e5, DefaultMaxQuantity)
	assert.Error(t, err)
}

func TestClean_ConvertsGramsToKg(t *testing.T) {
	item, err := Clean(domain.RawExtractedItem{Name: "  Basmati   Rice ", Quantity: "500", Unit: "g", Confidence: 0.9}, DefaultMaxQuantity)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, UnitKg, item.Unit)
	assert.InDelta(t, 0.5, item.Quantity, 1e-9)
	assert.Equal(t, "Basmati Rice", item.RawName)
}

func TestClean_DropsEmptyName(t *testing.T) {
	item, err := Clean(domain.RawExtractedItem{Name: "...", Quantity: 1, Unit: "kg"}, DefaultMaxQuantity)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestMergeDuplicates_SumsQuantityAndKeepsMaxConfidence(t *testing.T) {
	items := []domain.ExtractedItem{
		{RawName: "Rice", Unit: UnitKg, Quantity: 1, Confidence: 0.6},
		{RawName: "rice", Unit: UnitKg, Quantity: 2, Confidence: 0.9},
		{RawName: "Sugar", Unit: UnitKg, Quantity: 1, Confidence: 0.7},
	}
	merged := MergeDuplicates(items)
	require.Len(t, merged, 2)
	assert.Equal(t, "Rice", merged[0].RawName)
	assert.InDelta(t, 3, merged[0].Quantity, 1e-9)
	assert.InDelta(t, 0.9, merged[0].Confidence, 1e-9)
}
