package tokenest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormulaEstimate(t *testing.T) {
	assert.Equal(t, 0, formulaEstimate(""))
	assert.Equal(t, 2, formulaEstimate("one")) // ceil(1*1.3) = 2
	assert.Equal(t, 3, formulaEstimate("one two"))
}

func TestEstimator_EmptyText(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.Estimate(""))
}

func TestEstimator_NonEmptyTextIsPositive(t *testing.T) {
	e := New()
	got := e.Estimate("git commit -m fix the thing that broke")
	assert.Greater(t, got, 0)
}

func TestEstimator_FallsBackWhenNotReady(t *testing.T) {
	e := &Estimator{ready: false}
	got := e.Estimate("four words here now")
	assert.Equal(t, formulaEstimate("four words here now"), got)
}
