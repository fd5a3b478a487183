package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, -0.5, Round2(-0.5))
	assert.Equal(t, 0.3, Round2(0.1+0.2))
}

func TestAddSubDoNotDrift(t *testing.T) {
	stock := 0.0
	for i := 0; i < 100; i++ {
		stock = Add(stock, 0.25)
		stock = Sub(stock, 0.25)
	}
	assert.Equal(t, 0.0, stock)

	stock = 0.0
	for i := 0; i < 100; i++ {
		stock = Add(stock, 0.1)
	}
	assert.Equal(t, 10.0, stock)
}

func TestMulAndDiv(t *testing.T) {
	assert.Equal(t, 9000.0, Mul(4.5, 2000))
	assert.Equal(t, 0.33, Div(1, 3))
	assert.Equal(t, 0.0, Div(5, 0))
}

func TestSumAndPredicates(t *testing.T) {
	assert.Equal(t, 0.6, Sum(0.1, 0.2, 0.3))
	assert.True(t, IsZero(0.001))
	assert.False(t, IsZero(0.01))
	assert.True(t, Positive(0.01))
	assert.False(t, Positive(-0.01))
}
