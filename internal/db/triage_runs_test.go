package db

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriageRun_JSON(t *testing.T) {
	run := TriageRun{
		ID:          uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Owner:       "o",
		Repo:        "r",
		IssueNumber: 3,
		Event:       "issues.opened",
		Outcome:     "invalid",
		Violations:  []string{"Root object must have required property 'app'"},
	}

	data, err := json.Marshal(run)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", decoded["id"])
	assert.Equal(t, float64(3), decoded["issue_number"])
	assert.NotContains(t, decoded, "link")
	assert.NotContains(t, decoded, "error")
}

func TestSchemaSQL(t *testing.T) {
	assert.True(t, strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS triage_runs"))
	assert.Contains(t, schemaSQL, "violations    JSONB")
}
