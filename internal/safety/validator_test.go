package safety

import (
	"testing"

	"github.com/nudge-sh/nudge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Dangerous(t *testing.T) {
	v := New(nil, true)
	risk, reason := v.Classify("rm -rf /")
	assert.Equal(t, protocol.RiskDangerous, risk)
	assert.NotEmpty(t, reason)
}

func TestClassify_Moderate(t *testing.T) {
	v := New(nil, true)
	risk, _ := v.Classify("git push origin main --force")
	assert.Equal(t, protocol.RiskModerate, risk)
}

func TestClassify_Safe(t *testing.T) {
	v := New(nil, true)
	risk, _ := v.Classify("git status")
	assert.Equal(t, protocol.RiskSafe, risk)
}

func TestApply_BlocksDangerousWhenConfigured(t *testing.T) {
	v := New(nil, true)
	resp := &protocol.Response{Suggestion: "rm -rf /"}
	v.Apply(resp)

	assert.Empty(t, resp.Suggestion)
	assert.Equal(t, protocol.RiskDangerous, resp.Risk)
	require.NotNil(t, resp.Warning)
	assert.Contains(t, *resp.Warning, "dangerous")
}

func TestApply_CandidatesKeepRiskTagWhenPrimaryBlocked(t *testing.T) {
	v := New(nil, true)
	resp := &protocol.Response{
		Suggestion: "rm -rf /",
		Candidates: []protocol.Candidate{{Text: "rm -rf /"}, {Text: "git status"}},
	}
	v.Apply(resp)

	assert.Equal(t, protocol.RiskDangerous, resp.Candidates[0].Risk)
	assert.Equal(t, protocol.RiskSafe, resp.Candidates[1].Risk)
}

func TestApply_DoesNotBlockWhenDisabled(t *testing.T) {
	v := New(nil, false)
	resp := &protocol.Response{Suggestion: "rm -rf /"}
	v.Apply(resp)

	assert.Equal(t, "rm -rf /", resp.Suggestion)
	assert.Equal(t, protocol.RiskDangerous, resp.Risk)
	assert.Nil(t, resp.Warning)
}

func TestNew_CustomBlockedPattern(t *testing.T) {
	v := New([]string{`deploy-prod`}, true)
	risk, _ := v.Classify("./deploy-prod.sh")
	assert.Equal(t, protocol.RiskDangerous, risk)
}
