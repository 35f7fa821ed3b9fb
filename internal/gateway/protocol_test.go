package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	frame, err := NewRequest("req-1", "agents.list", map[string]string{"canvasId": "c1"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	assert.Equal(t, "agents.list", frame.Method)

	var params map[string]string
	require.NoError(t, json.Unmarshal(frame.Params, &params))
	assert.Equal(t, "c1", params["canvasId"])
}

func TestNewResponse(t *testing.T) {
	frame, err := NewResponse("req-1", map[string]bool{"done": true})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeResponse, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	require.NotNil(t, frame.OK)
	assert.True(t, *frame.OK)
	assert.Nil(t, frame.Error)
}

func TestNewErrorResponse(t *testing.T) {
	frame := NewErrorResponse("req-1", ErrorShape{Code: "not_found", Message: "missing"})

	assert.Equal(t, FrameTypeResponse, frame.Type)
	require.NotNil(t, frame.OK)
	assert.False(t, *frame.OK)
	require.NotNil(t, frame.Error)
	assert.Equal(t, "not_found", frame.Error.Code)
}

func TestNewEvent(t *testing.T) {
	frame, err := NewEvent("query.update", map[string]string{"query": "agents.list"}, 42)
	require.NoError(t, err)

	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, "query.update", frame.Event)
	assert.Equal(t, int64(42), frame.Seq)
}

func TestFrameRoundTrip(t *testing.T) {
	frame, err := NewRequest("abc", "viewport.save", map[string]float64{"zoom": 1.5})
	require.NoError(t, err)

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded Frame
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, frame.Type, decoded.Type)
	assert.Equal(t, frame.ID, decoded.ID)
	assert.Equal(t, frame.Method, decoded.Method)
}

func TestFrameOmitsEmptyFields(t *testing.T) {
	frame, err := NewEvent("canvas.deleted", map[string]string{"canvasId": "c1"}, 1)
	require.NoError(t, err)

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	// Event frames carry no request/response fields on the wire
	assert.NotContains(t, string(raw), `"method"`)
	assert.NotContains(t, string(raw), `"ok"`)
	assert.NotContains(t, string(raw), `"error"`)
}
