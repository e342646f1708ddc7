package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	for in, want := range map[string]string{
		"rice":     "RICE",
		"  Oil ":   "OIL",
		"straße":   "STRASSE",
		"STRASSE":  "STRASSE",
		"açúcar-1": "AÇÚCAR-1",
	} {
		assert.Equal(t, want, NormalizeCode(in), in)
	}
}

func TestMinimumQuantity(t *testing.T) {
	assert.Equal(t, 1, Product{}.MinimumQuantity())
	assert.Equal(t, 4, Product{MinimumPurchaseQuantity: 4}.MinimumQuantity())
}
