package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TechIntel/internal/application/tracking"
	"github.com/turtacn/TechIntel/internal/domain/readiness"
	"github.com/turtacn/TechIntel/internal/testutil"
	"github.com/turtacn/TechIntel/pkg/client"
	"github.com/turtacn/TechIntel/pkg/errors"
)

func TestTrackCmd_PrintsTransitions(t *testing.T) {
	b := &fakeBackend{responses: map[string][]*client.StatusResponse{
		"quantum": {ready(testutil.ProcessingJSON), ready(testutil.QuantumJSON)},
	}}

	out, err := execute(t, backendDeps(b), "track", "--interval", "1ms", "quantum")
	require.NoError(t, err)

	assert.Contains(t, out, "quantum: unstarted -> processing\n")
	assert.Contains(t, out, "quantum: processing -> ready\n")
	assert.Contains(t, out, "technology  state")
	assert.Contains(t, out, "quantum     ready")
}

func TestTrackCmd_MissingFails(t *testing.T) {
	b := &fakeBackend{responses: map[string][]*client.StatusResponse{
		"quantum": {ready(testutil.QuantumJSON)},
	}}

	out, err := execute(t, backendDeps(b), "track", "-o", "json", "--interval", "1ms", "quantum", "ghost")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTechnologyMissing), "%v", err)

	// The transition lines precede the JSON document.
	start := 0
	for i := range out {
		if out[i] == '[' {
			start = i
			break
		}
	}
	var statuses []tracking.Status
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, readiness.Ready, statuses[0].State)
	assert.Equal(t, readiness.Missing, statuses[1].State)
}

func TestTrackCmd_CreateIfMissing(t *testing.T) {
	b := &fakeBackend{responses: map[string][]*client.StatusResponse{
		"robotics": {ready(testutil.RoboticsJSON)},
	}}

	out, err := execute(t, backendDeps(b), "track", "--create", "robotics")
	require.NoError(t, err)
	assert.Contains(t, out, "robotics: unstarted -> ready\n")
}

func TestTrackCmd_Errors(t *testing.T) {
	_, err := execute(t, CommandDependencies{}, "track", "quantum")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotImplemented))

	_, err = execute(t, backendDeps(&fakeBackend{}), "track", "  ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = execute(t, backendDeps(&fakeBackend{}), "track")
	assert.Error(t, err)
}

func TestTrackCmd_Timeout(t *testing.T) {
	b := &fakeBackend{responses: map[string][]*client.StatusResponse{
		"quantum": {ready(testutil.ProcessingJSON)},
	}}

	_, err := execute(t, backendDeps(b), "track", "--interval", "1ms", "--wait", "20ms", "quantum")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout), "%v", err)
}
