package contract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// --- Request constructor defaults ---

func TestNewDiffTreesRequest_SetsDefaults(t *testing.T) {
	req := NewDiffTreesRequest("l", "r")

	assert.Equal(t, "l", req.LeftID)
	assert.Equal(t, "r", req.RightID)
	assert.True(t, req.CompareStructure)
	assert.True(t, req.ComparePayload)
	assert.True(t, req.CompareMetadata)
	assert.False(t, req.CompareNodeIDs)
}

func TestNewExportTreeRequest_SetsDefaults(t *testing.T) {
	req := NewExportTreeRequest()

	assert.Equal(t, "json", req.Format)
	assert.Empty(t, req.NodeID)
	assert.False(t, req.Compress)
	assert.True(t, req.IncludeViewState)
	assert.True(t, req.IncludeTags)
}

func TestNewImportTreeRequest_SetsDefaults(t *testing.T) {
	req := NewImportTreeRequest("{}")

	assert.Equal(t, "{}", req.Data)
	assert.Equal(t, "append", req.Mode)
	assert.Empty(t, req.Format)
	assert.True(t, req.RestoreViewState)
	assert.True(t, req.RestoreTags)
	assert.Nil(t, req.VersionToken)
}

// --- Agent roles ---

func TestAgentContext_Roles(t *testing.T) {
	tests := []struct {
		name      string
		agent     AgentContext
		canRead   bool
		canMutate bool
	}{
		{"no roles", NewAgentContext("a"), false, false},
		{"reader", NewAgentContext("a", RoleReader), true, false},
		{"editor", NewAgentContext("a", RoleEditor), true, true},
		{"admin implies editor", NewAgentContext("a", RoleAdmin), true, true},
		{"read-only editor", AgentContext{AgentID: "a", ReadOnly: true, Roles: []Role{RoleEditor}}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canRead, tt.agent.CanRead())
			assert.Equal(t, tt.canMutate, tt.agent.CanMutate())
		})
	}
}

// --- Result envelope ---

func TestResult_ErrAndCode(t *testing.T) {
	ok := Result[int]{Success: true, Data: 1}
	assert.NoError(t, ok.Err())
	assert.Empty(t, ok.Code())

	retry := 3 * time.Second
	failed := Result[int]{Error: &Error{Code: ErrRateLimited, Message: "slow down", RetryAfter: &retry}}
	assert.Equal(t, ErrRateLimited, failed.Code())
	assert.EqualError(t, failed.Err(), "rate_limited: slow down")

	var e *Error
	assert.True(t, errors.As(failed.Err(), &e))
	assert.Equal(t, retry, *e.RetryAfter)
}
