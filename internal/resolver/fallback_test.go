package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"strainscan/internal/util"
)

func TestFirstDefined(t *testing.T) {
	empty := util.StringPtr("")
	assert.Nil(t, FirstDefined[string]())
	assert.Nil(t, FirstDefined[string](nil, nil))
	// an empty string is still defined
	assert.Same(t, empty, FirstDefined(nil, empty, util.StringPtr("x")))
}

func TestValueOr(t *testing.T) {
	assert.Equal(t, 0.5, ValueOr(nil, 0.5))
	assert.Equal(t, 0.0, ValueOr(util.FloatPtr(0), 0.5))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "", FirstNonEmpty())
	assert.Equal(t, "Gelato", FirstNonEmpty(nil, util.StringPtr("  "), util.StringPtr("Gelato"), util.StringPtr("Runtz")))
}
