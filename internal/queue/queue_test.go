package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"main/internal/queue"
)

func TestRiskAverse_NeverOvershoots(t *testing.T) {
	m := queue.RiskAverse{}
	assert.Equal(t, 4.0, m.Advance(10, 100, 6))
	assert.Equal(t, 0.0, m.Advance(4, 100, 10), "trade larger than queueAhead clamps to zero")
}

func TestProbabilityQueue_Log(t *testing.T) {
	m := queue.ProbabilityQueue{Weight: queue.Log}

	// trade fully absorbed by directly-ahead quantity: identical to RiskAverse.
	assert.Equal(t, 4.0, m.Advance(10, 100, 6))

	// a trade larger than queueAhead never leaves more queue ahead
	// than RiskAverse would.
	got := m.Advance(10, 20, 15)
	riskAverse := queue.RiskAverse{}.Advance(10, 20, 15)
	assert.Less(t, got, riskAverse+1e-9)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestProbabilityQueue_Square_LessAggressiveThanLog(t *testing.T) {
	logModel := queue.ProbabilityQueue{Weight: queue.Log}
	squareModel := queue.ProbabilityQueue{Weight: queue.Square}

	logResult := logModel.AdvanceOnDepthDecrease(10, 20, 15)
	squareResult := squareModel.AdvanceOnDepthDecrease(10, 20, 15)

	// square weights a partially-consumed fraction (<1) below its log2
	// counterpart, so a depth decrease erodes the queue less
	// aggressively: at fraction 0.5, log leaves about 1.23 ahead and
	// square leaves 6.25.
	assert.LessOrEqual(t, logResult, squareResult)
}

func TestProbabilityQueue_Power(t *testing.T) {
	m := queue.ProbabilityQueue{Weight: queue.Power(3)}
	got := m.Advance(10, 20, 15)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 10.0)
}

func TestProbabilityQueue_ZeroLevelQtyFallsBackToDirect(t *testing.T) {
	m := queue.ProbabilityQueue{Weight: queue.Log}
	assert.Equal(t, 0.0, m.Advance(5, 0, 5))
}
