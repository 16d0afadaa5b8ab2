package mcpbridge

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/wire"
)

func newTestBridge(t *testing.T) (*Bridge, *wire.Reader, *wire.Writer) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return &Bridge{client: NewClient(a), registered: make(map[string]bool)}, wire.NewReader(b), wire.NewWriter(b)
}

func callReq(args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{Params: mcplib.CallToolParams{Arguments: args}}
}

func TestParamOption_MapsTypeCodes(t *testing.T) {
	assert.NotNil(t, paramOption("flag", wire.TypeBool))
	assert.NotNil(t, paramOption("speed", wire.TypeDouble))
	assert.NotNil(t, paramOption("label", wire.TypeString))
	assert.NotNil(t, paramOption("samples", wire.TypeFloatArray))
}

func TestExtractParameter_ScalarTypes(t *testing.T) {
	req := callReq(map[string]any{"on": true, "speed": 2.5, "label": "arm"})

	raw, err := extractParameter(req, "on", wire.TypeBool)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))

	raw, err = extractParameter(req, "speed", wire.TypeDouble)
	require.NoError(t, err)
	assert.JSONEq(t, "2.5", string(raw))

	raw, err = extractParameter(req, "label", wire.TypeString)
	require.NoError(t, err)
	assert.JSONEq(t, `"arm"`, string(raw))
}

func TestExtractParameter_ArrayMustBeValidJSON(t *testing.T) {
	req := callReq(map[string]any{"samples": "[1,2,3]", "bad": "not json"})

	raw, err := extractParameter(req, "samples", wire.TypeFloatArray)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2,3]", string(raw))

	_, err = extractParameter(req, "bad", wire.TypeFloatArray)
	assert.Error(t, err)
}

func TestFunctionCallHandler_RoundTrip(t *testing.T) {
	b, serverReader, serverWriter := newTestBridge(t)
	handler := b.functionCallHandler("arm", "move_to", map[string]wire.TypeCode{"x": wire.TypeDouble})

	done := make(chan *mcplib.CallToolResult, 1)
	go func() {
		result, err := handler(context.Background(), callReq(map[string]any{"x": 1.0}))
		require.NoError(t, err)
		done <- result
	}()

	msg, err := serverReader.ReadMessage()
	require.NoError(t, err)
	fc, ok := msg.Inner.(wire.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "arm", fc.Destination)
	assert.Equal(t, "move_to", fc.Name)

	require.NoError(t, serverWriter.WriteMessage(wire.New(msg.MessageID, wire.FunctionReturn{
		ReplyTo: msg.MessageID,
		Returns: map[string]json.RawMessage{"ok": json.RawMessage("true")},
	})))

	select {
	case result := <-done:
		require.NotNil(t, result)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler result")
	}
}

func TestSensorReadHandler_UnsupportedOperationBecomesToolError(t *testing.T) {
	b, serverReader, serverWriter := newTestBridge(t)

	done := make(chan *mcplib.CallToolResult, 1)
	go func() {
		result, err := b.sensorReadHandler(context.Background(), callReq(map[string]any{"machine": "arm", "name": "temp"}))
		require.NoError(t, err)
		done <- result
	}()

	msg, err := serverReader.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, serverWriter.WriteMessage(wire.New(msg.MessageID, wire.UnsupportedOperation{
		ReplyTo:   msg.MessageID,
		Operation: "sensor_read",
		Reason:    "no such sensor",
	})))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.True(t, result.IsError)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler result")
	}
}

func TestMachinesListHandler_RendersNameArray(t *testing.T) {
	b, serverReader, serverWriter := newTestBridge(t)

	done := make(chan *mcplib.CallToolResult, 1)
	go func() {
		result, err := b.machinesListHandler(context.Background(), callReq(nil))
		require.NoError(t, err)
		done <- result
	}()

	msg, err := serverReader.ReadMessage()
	require.NoError(t, err)
	_, ok := msg.Inner.(wire.MachineListRequest)
	require.True(t, ok)
	require.NoError(t, serverWriter.WriteMessage(wire.New(msg.MessageID, wire.MachineListReply{Machines: []string{"arm", "gripper"}})))

	select {
	case result := <-done:
		require.NotNil(t, result)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler result")
	}
}
