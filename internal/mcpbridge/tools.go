package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/robofabric/fabric/internal/wire"
)

// functionToolOptions builds the mcp-go tool options for one
// machine_description function entry: one typed parameter per declared
// name, in sorted order for a stable, reproducible schema. Array type
// codes get a string parameter carrying the JSON-encoded array — the
// mark3labs library in this version has no array-of-primitive schema
// option (the teacher's own cmd/brum/main.go createProxyToolHandler notes
// "We can't dynamically add schema with mark3labs library" for the
// general case; named parameters let us do better here, just not for
// array element typing).
func functionToolOptions(description string, params map[string]wire.TypeCode) []mcplib.ToolOption {
	opts := []mcplib.ToolOption{mcplib.WithDescription(description)}
	for _, name := range sortedKeys(params) {
		opts = append(opts, paramOption(name, params[name]))
	}
	return opts
}

func sortedKeys(params map[string]wire.TypeCode) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func paramOption(name string, code wire.TypeCode) mcplib.ToolOption {
	switch {
	case code == wire.TypeBool:
		return mcplib.WithBoolean(name, mcplib.Required(), mcplib.Description(fmt.Sprintf("%s parameter (bool)", name)))
	case code.IsArray():
		return mcplib.WithString(name, mcplib.Required(),
			mcplib.Description(fmt.Sprintf("%s parameter, a JSON-encoded array of %s values", name, code.Elem())))
	case code.IsString():
		return mcplib.WithString(name, mcplib.Required(), mcplib.Description(fmt.Sprintf("%s parameter (string)", name)))
	default:
		return mcplib.WithNumber(name, mcplib.Required(), mcplib.Description(fmt.Sprintf("%s parameter (%s)", name, code)))
	}
}

// extractParameter pulls one named argument out of request per its
// declared wire type code and marshals it to the json.RawMessage shape
// function_call.parameters carries on the wire.
func extractParameter(request mcplib.CallToolRequest, name string, code wire.TypeCode) (json.RawMessage, error) {
	switch {
	case code == wire.TypeBool:
		v, err := request.RequireBool(name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	case code.IsArray():
		raw, err := request.RequireString(name)
		if err != nil {
			return nil, err
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("%s: not valid JSON", name)
		}
		return json.RawMessage(raw), nil
	case code.IsString():
		v, err := request.RequireString(name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	default:
		v, err := request.RequireFloat(name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: text}},
	}
}

func errorReply(reply wire.Message) (*mcplib.CallToolResult, bool) {
	if uo, ok := reply.Inner.(wire.UnsupportedOperation); ok {
		return mcplib.NewToolResultError(uo.Reason), true
	}
	return nil, false
}

// functionCallHandler builds the MCP handler for one machine+function
// tool: gather its typed parameters from the request, send a
// function_call, and render the correlated function_return's named
// results as JSON text.
func (b *Bridge) functionCallHandler(machine, function string, params map[string]wire.TypeCode) func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args := make(map[string]json.RawMessage, len(params))
		for name, code := range params {
			raw, err := extractParameter(request, name, code)
			if err != nil {
				return mcplib.NewToolResultError(err.Error()), nil
			}
			args[name] = raw
		}

		reply, err := b.client.Call(ctx, wire.FunctionCall{Destination: machine, Name: function, Parameters: args})
		if err != nil {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		if errResult, ok := errorReply(reply); ok {
			return errResult, nil
		}
		fr, ok := reply.Inner.(wire.FunctionReturn)
		if !ok {
			return mcplib.NewToolResultError(fmt.Sprintf("unexpected reply %s to function_call", reply.Inner.Tag())), nil
		}
		out, err := json.Marshal(fr.Returns)
		if err != nil {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		return textResult(string(out)), nil
	}
}

// machinesListHandler backs the machines_list tool: a machine_list_request
// round trip, rendered as a JSON array of names.
func (b *Bridge) machinesListHandler(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	reply, err := b.client.Call(ctx, wire.MachineListRequest{})
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	mlr, ok := reply.Inner.(wire.MachineListReply)
	if !ok {
		return mcplib.NewToolResultError(fmt.Sprintf("unexpected reply %s to machine_list_request", reply.Inner.Tag())), nil
	}
	out, err := json.Marshal(mlr.Machines)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return textResult(string(out)), nil
}

// sensorReadHandler backs the generic sensor_read tool: machine + sensor
// name, rendered as the sensor's raw JSON value.
func (b *Bridge) sensorReadHandler(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	machine, err := request.RequireString("machine")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	reply, err := b.client.Call(ctx, wire.SensorRead{Destination: machine, Name: name})
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if errResult, ok := errorReply(reply); ok {
		return errResult, nil
	}
	sr, ok := reply.Inner.(wire.SensorReturn)
	if !ok {
		return mcplib.NewToolResultError(fmt.Sprintf("unexpected reply %s to sensor_read", reply.Inner.Tag())), nil
	}
	return textResult(string(sr.Value)), nil
}

// axisChangeHandler backs the generic axis_change tool: machine + axis
// name + new value.
func (b *Bridge) axisChangeHandler(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	machine, err := request.RequireString("machine")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireFloat("value")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	reply, err := b.client.Call(ctx, wire.AxisChange{Destination: machine, Name: name, Value: value})
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if errResult, ok := errorReply(reply); ok {
		return errResult, nil
	}
	if _, ok := reply.Inner.(wire.AxisReturn); !ok {
		return mcplib.NewToolResultError(fmt.Sprintf("unexpected reply %s to axis_change", reply.Inner.Tag())), nil
	}
	return textResult(`{"ok":true}`), nil
}
