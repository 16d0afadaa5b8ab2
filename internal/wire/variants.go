package wire

import "encoding/json"

// Inner is implemented by every message variant. Tag returns the wire
// "message_type" value.
type Inner interface {
	Tag() string
}

// Replying is implemented by variants that carry a reply_to id.
type Replying interface {
	GetReplyTo() int64
}

// Addressed is implemented by variants that carry a destination machine
// name (spec.md §9: the "with destination" schema is authoritative).
type Addressed interface {
	GetDestination() string
}

// MachineDescription announces a machine's capability surface.
type MachineDescription struct {
	Name      string              `json:"name"`
	Functions map[string]Function `json:"functions"`
	Sensors   map[string]Sensor   `json:"sensors"`
	Axes      map[string]Axis     `json:"axes"`
	Streams   map[string]Stream   `json:"streams"`
}

func (MachineDescription) Tag() string { return "machine_description" }

// FunctionCall invokes a registered function on a machine.
type FunctionCall struct {
	Destination string                     `json:"destination"`
	Name        string                     `json:"name"`
	Parameters  map[string]json.RawMessage `json:"parameters"`
}

func (FunctionCall) Tag() string              { return "function_call" }
func (m FunctionCall) GetDestination() string { return m.Destination }

// FunctionReturn carries the result of a function call back to the caller.
type FunctionReturn struct {
	ReplyTo int64                      `json:"reply_to"`
	Returns map[string]json.RawMessage `json:"returns"`
}

func (FunctionReturn) Tag() string        { return "function_return" }
func (m FunctionReturn) GetReplyTo() int64 { return m.ReplyTo }

// SensorRead polls a registered sensor on a machine.
type SensorRead struct {
	Destination string `json:"destination"`
	Name        string `json:"name"`
}

func (SensorRead) Tag() string              { return "sensor_read" }
func (m SensorRead) GetDestination() string { return m.Destination }

// SensorReturn carries a sensor's value back to the requester.
type SensorReturn struct {
	ReplyTo int64           `json:"reply_to"`
	Value   json.RawMessage `json:"value"`
}

func (SensorReturn) Tag() string         { return "sensor_return" }
func (m SensorReturn) GetReplyTo() int64 { return m.ReplyTo }

// AxisChange writes a new value to a registered axis on a machine.
type AxisChange struct {
	Destination string  `json:"destination"`
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
}

func (AxisChange) Tag() string              { return "axis_change" }
func (m AxisChange) GetDestination() string { return m.Destination }

// AxisReturn acknowledges an axis change.
type AxisReturn struct {
	ReplyTo int64 `json:"reply_to"`
}

func (AxisReturn) Tag() string         { return "axis_return" }
func (m AxisReturn) GetReplyTo() int64 { return m.ReplyTo }

// UnsupportedOperation reports that an operation named by a prior message
// could not be serviced.
type UnsupportedOperation struct {
	ReplyTo   int64  `json:"reply_to"`
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}

func (UnsupportedOperation) Tag() string         { return "unsupported_operation" }
func (m UnsupportedOperation) GetReplyTo() int64 { return m.ReplyTo }

// Reset requests that a machine return to a safe state. Fire-and-forget:
// it carries no reply_to and none should ever be synthesized for it
// (spec.md §9 "Reset vs explicit reply").
type Reset struct {
	Destination string `json:"destination"`
}

func (Reset) Tag() string              { return "reset" }
func (m Reset) GetDestination() string { return m.Destination }

// Disconnect notifies a peer (or the server) that the sender is going
// away, triggering registry removal.
type Disconnect struct{}

func (Disconnect) Tag() string { return "disconnect" }

// StreamDescriptor, sent once on a fresh media connection, announces which
// machine+stream the connection carries.
type StreamDescriptor struct {
	Machine string `json:"machine"`
	Stream  string `json:"stream"`
}

func (StreamDescriptor) Tag() string { return "stream_descriptor" }

// Heartbeat is a keepalive request or, with IsReply set, its reply.
type Heartbeat struct {
	IsReply bool `json:"is_reply"`
}

func (Heartbeat) Tag() string { return "heartbeat" }

// MachineListRequest asks the server for the names of connected machines.
type MachineListRequest struct{}

func (MachineListRequest) Tag() string { return "machine_list_request" }

// MachineListReply answers a MachineListRequest.
type MachineListReply struct {
	Machines []string `json:"machines"`
}

func (MachineListReply) Tag() string { return "machine_list_reply" }

// SetupResponse is sent by the server immediately after a
// MachineDescription is accepted or rejected (spec.md §9 resolved Open
// Question). Connected=false maps to fabricerr.ConnectionRejected on the
// machine side.
type SetupResponse struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

func (SetupResponse) Tag() string { return "setup_response" }

type variantInfo struct {
	route        Route
	expectsReply bool
	decode       func(map[string]json.RawMessage) (Inner, error)
}

var variantTable = map[string]variantInfo{}
var variantNames []string

func addVariant[T Inner](route Route, expectsReply bool) {
	var zero T
	tag := zero.Tag()
	variantTable[tag] = variantInfo{
		route:        route,
		expectsReply: expectsReply,
		decode: func(raw map[string]json.RawMessage) (Inner, error) {
			v, err := decodeStrict[T](raw)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	variantNames = append(variantNames, tag)
}

func init() {
	addVariant[MachineDescription](Route{RoleMachine, RoleServer}, false)
	addVariant[FunctionCall](Route{RoleEnvironment, RoleMachine}, true)
	addVariant[FunctionReturn](Route{RoleMachine, RoleEnvironment}, false)
	addVariant[SensorRead](Route{RoleEnvironment, RoleMachine}, true)
	addVariant[SensorReturn](Route{RoleMachine, RoleEnvironment}, false)
	addVariant[AxisChange](Route{RoleEnvironment, RoleMachine}, true)
	addVariant[AxisReturn](Route{RoleMachine, RoleEnvironment}, false)
	addVariant[UnsupportedOperation](Route{RoleAny, RoleAny}, false)
	addVariant[Reset](Route{RoleEnvironment, RoleMachine}, false)
	addVariant[Disconnect](Route{RoleAny, RoleAny}, false)
	addVariant[StreamDescriptor](Route{RoleAny, RoleServer}, false)
	addVariant[Heartbeat](Route{RoleAny, RoleAny}, false)
	addVariant[MachineListRequest](Route{RoleEnvironment, RoleServer}, false)
	addVariant[MachineListReply](Route{RoleServer, RoleEnvironment}, false)
	addVariant[SetupResponse](Route{RoleServer, RoleMachine}, false)
}
