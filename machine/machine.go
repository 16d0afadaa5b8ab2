// Package machine implements the machine-side capability registry and
// connection state machine (spec.md §4.C/§4.D): the library a piece of
// industrial/robotic equipment links against to announce its functions,
// sensors, axes, and streams, connect to a fabric server, and service
// inbound calls via Update.
package machine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/marshal"
	"github.com/robofabric/fabric/internal/wire"
)

// State is the machine library's connection state (spec.md §4.D).
type State int

const (
	Unconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "unconnected"
}

// Function is a registered callable capability. Params/Returns carry
// declared order, which the wire schema itself does not (see
// internal/wire.Function's doc comment).
type Function struct {
	Params   []marshal.Param
	Returns  []marshal.Param
	Callback marshal.Callback
}

// Sensor is a registered pollable scalar capability.
type Sensor struct {
	Min, Max float64
	Callback func() (float64, error)
}

// Axis is a registered writable scalar capability.
type Axis struct {
	Min, Max         float64
	Group, Direction string
	Callback         func(value float64) error
}

// Stream is a registered raw media capability, backed by a POSIX file
// descriptor (spec.md §4.C "register_stream... On non-POSIX hosts this
// fails with unsupported").
type Stream struct {
	Format    string
	File      *os.File
	mediaConn net.Conn
	running   atomic.Bool
}

// Machine is one machine library instance: one capability registry, one
// connection to a fabric server. Its public entry points are not
// reentrant; callers must serialize calls per instance (spec.md §5).
type Machine struct {
	mu            sync.RWMutex
	state         State
	name          string
	resetCallback func()

	functions map[string]*Function
	sensors   map[string]*Sensor
	axes      map[string]*Axis
	streams   map[string]*Stream

	nextID atomic.Int64

	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer

	wg sync.WaitGroup
}

// New returns a Machine in the Unconnected state.
func New() *Machine {
	return &Machine{
		functions: make(map[string]*Function),
		sensors:   make(map[string]*Sensor),
		axes:      make(map[string]*Axis),
		streams:   make(map[string]*Stream),
	}
}

func (m *Machine) requireUnconnected() error {
	if m.state != Unconnected {
		return fabricerr.New(fabricerr.AlreadyConnected, errors.New("already connected"))
	}
	return nil
}

// SetName sets the machine's advertised name. Unconnected only.
func (m *Machine) SetName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	m.name = name
	return nil
}

// SetReset stores the callback invoked on an inbound reset message. cb may
// be nil.
func (m *Machine) SetReset(cb func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	m.resetCallback = cb
	return nil
}

// RegisterFunction registers a callable capability. Unconnected only;
// rejects duplicate names and unknown type codes.
func (m *Machine) RegisterFunction(name string, params, returns []marshal.Param, cb marshal.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	if _, exists := m.functions[name]; exists {
		return fabricerr.New(fabricerr.DuplicateName, fmt.Errorf("function %q already registered", name))
	}
	for _, p := range params {
		if !p.Code.Valid() {
			return fabricerr.Newf(fabricerr.InvalidParameter, "unknown type code %q for parameter %q", p.Code, p.Name)
		}
	}
	for _, r := range returns {
		if !r.Code.Valid() {
			return fabricerr.Newf(fabricerr.InvalidParameter, "unknown type code %q for return %q", r.Code, r.Name)
		}
	}
	m.functions[name] = &Function{Params: params, Returns: returns, Callback: cb}
	return nil
}

// RegisterSensor registers a pollable scalar capability (always double,
// spec.md §4.C).
func (m *Machine) RegisterSensor(name string, min, max float64, cb func() (float64, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	if _, exists := m.sensors[name]; exists {
		return fabricerr.New(fabricerr.DuplicateName, fmt.Errorf("sensor %q already registered", name))
	}
	m.sensors[name] = &Sensor{Min: min, Max: max, Callback: cb}
	return nil
}

// RegisterAxis registers a writable scalar capability (always double,
// spec.md §4.C).
func (m *Machine) RegisterAxis(name string, min, max float64, group, direction string, cb func(value float64) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	if _, exists := m.axes[name]; exists {
		return fabricerr.New(fabricerr.DuplicateName, fmt.Errorf("axis %q already registered", name))
	}
	m.axes[name] = &Axis{Min: min, Max: max, Group: group, Direction: direction, Callback: cb}
	return nil
}

// RegisterStream registers a raw media capability backed by f. f may be
// nil to describe a stream without a local producer (declared but never
// pumped).
func (m *Machine) RegisterStream(name, format string, f *os.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireUnconnected(); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return fabricerr.New(fabricerr.Unsupported, errors.New("register_stream requires a POSIX file descriptor"))
	}
	if _, exists := m.streams[name]; exists {
		return fabricerr.New(fabricerr.DuplicateName, fmt.Errorf("stream %q already registered", name))
	}
	m.streams[name] = &Stream{Format: format, File: f}
	return nil
}

// Connect dials the server's control port, announces the machine's
// capabilities, and — if RegisterStream left any live file descriptors —
// dials the media port once per stream (spec.md §4.D, §4.I).
func (m *Machine) Connect(controlAddr, mediaAddr string) error {
	m.mu.Lock()
	if err := m.requireUnconnected(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	conn, err := net.Dial("tcp", controlAddr)
	if err != nil {
		return fabricerr.New(fabricerr.ConnectionError, err)
	}

	reader := wire.NewReader(conn)
	writer := wire.NewWriter(conn)

	m.mu.Lock()
	desc := m.descriptorLocked()
	m.mu.Unlock()

	id := m.nextID.Add(1)
	if err := writer.WriteMessage(wire.New(id, desc)); err != nil {
		conn.Close()
		return fabricerr.New(fabricerr.MessageWriteError, err)
	}

	reply, err := reader.ReadMessage()
	if err != nil {
		conn.Close()
		return fabricerr.New(fabricerr.MessageReadError, err)
	}
	setup, ok := reply.Inner.(wire.SetupResponse)
	if !ok {
		conn.Close()
		return fabricerr.New(fabricerr.InvalidMessageReceived, fmt.Errorf("expected setup_response, got %s", reply.Inner.Tag()))
	}
	if !setup.Connected {
		conn.Close()
		return fabricerr.New(fabricerr.ConnectionRejected, errors.New(setup.Reason))
	}

	m.mu.Lock()
	m.conn = conn
	m.reader = reader
	m.writer = writer
	m.state = Connected
	m.mu.Unlock()

	if err := m.startStreams(mediaAddr); err != nil {
		return err
	}
	return nil
}

func (m *Machine) descriptorLocked() wire.MachineDescription {
	functions := make(map[string]wire.Function, len(m.functions))
	for name, f := range m.functions {
		functions[name] = wire.Function{Parameters: paramMap(f.Params), Returns: paramMap(f.Returns)}
	}
	sensors := make(map[string]wire.Sensor, len(m.sensors))
	for name, s := range m.sensors {
		sensors[name] = wire.Sensor{OutputType: wire.TypeDouble, Min: s.Min, Max: s.Max}
	}
	axes := make(map[string]wire.Axis, len(m.axes))
	for name, a := range m.axes {
		axes[name] = wire.Axis{InputType: wire.TypeDouble, Min: a.Min, Max: a.Max, Group: a.Group, Direction: a.Direction}
	}
	streams := make(map[string]wire.Stream, len(m.streams))
	for name, s := range m.streams {
		streams[name] = wire.Stream{Format: s.Format, BufferMethod: wire.BufferFrames}
	}
	return wire.MachineDescription{Name: m.name, Functions: functions, Sensors: sensors, Axes: axes, Streams: streams}
}

func paramMap(params []marshal.Param) map[string]wire.TypeCode {
	out := make(map[string]wire.TypeCode, len(params))
	for _, p := range params {
		out[p.Name] = p.Code
	}
	return out
}

// Update drains and dispatches every message currently waiting on the
// control connection, returning once none remain (spec.md §4.C "update()",
// §5 "Some(0) means poll once").
func (m *Machine) Update() error {
	m.mu.RLock()
	if m.state != Connected {
		m.mu.RUnlock()
		return fabricerr.New(fabricerr.NotConnected, errors.New("not connected"))
	}
	conn := m.conn
	reader := m.reader
	m.mu.RUnlock()

	for {
		if err := conn.SetReadDeadline(time.Now()); err != nil {
			return fabricerr.New(fabricerr.MessageReadError, err)
		}
		msg, err := reader.ReadMessage()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			if err == io.EOF {
				m.teardown()
				return fabricerr.New(fabricerr.ServerDisconnected, err)
			}
			return fabricerr.New(fabricerr.MessageReadError, err)
		}
		if err := m.dispatch(msg); err != nil {
			return err
		}
	}
}

func (m *Machine) dispatch(msg wire.Message) error {
	switch inner := msg.Inner.(type) {
	case wire.Heartbeat:
		if !inner.IsReply {
			return m.send(wire.Heartbeat{IsReply: true})
		}
		return nil
	case wire.Reset:
		m.mu.RLock()
		cb := m.resetCallback
		m.mu.RUnlock()
		if cb != nil {
			cb()
		}
		return nil
	case wire.FunctionCall:
		return m.handleFunctionCall(msg.MessageID, inner)
	case wire.SensorRead:
		return m.handleSensorRead(msg.MessageID, inner)
	case wire.AxisChange:
		return m.handleAxisChange(msg.MessageID, inner)
	case wire.Disconnect:
		m.teardown()
		return nil
	default:
		return nil
	}
}

func (m *Machine) handleFunctionCall(id int64, call wire.FunctionCall) error {
	m.mu.RLock()
	fn, ok := m.functions[call.Name]
	m.mu.RUnlock()
	if !ok {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: call.Name, Reason: "unknown function"})
	}
	returns, err := marshal.Call(fn.Params, fn.Returns, call.Parameters, fn.Callback)
	if err != nil {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: call.Name, Reason: err.Error()})
	}
	return m.send(wire.FunctionReturn{ReplyTo: id, Returns: returns})
}

func (m *Machine) handleSensorRead(id int64, read wire.SensorRead) error {
	m.mu.RLock()
	s, ok := m.sensors[read.Name]
	m.mu.RUnlock()
	if !ok {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: read.Name, Reason: "unknown sensor"})
	}
	v, err := s.Callback()
	if err != nil {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: read.Name, Reason: err.Error()})
	}
	value, err := json.Marshal(v)
	if err != nil {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: read.Name, Reason: err.Error()})
	}
	return m.send(wire.SensorReturn{ReplyTo: id, Value: value})
}

func (m *Machine) handleAxisChange(id int64, change wire.AxisChange) error {
	m.mu.RLock()
	ax, ok := m.axes[change.Name]
	m.mu.RUnlock()
	if !ok {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: change.Name, Reason: "unknown axis"})
	}
	if err := ax.Callback(change.Value); err != nil {
		return m.send(wire.UnsupportedOperation{ReplyTo: id, Operation: change.Name, Reason: err.Error()})
	}
	return m.send(wire.AxisReturn{ReplyTo: id})
}

func (m *Machine) send(inner wire.Inner) error {
	m.mu.RLock()
	writer := m.writer
	m.mu.RUnlock()
	if writer == nil {
		return fabricerr.New(fabricerr.NotConnected, errors.New("not connected"))
	}
	id := m.nextID.Add(1)
	if err := writer.WriteMessage(wire.New(id, inner)); err != nil {
		return fabricerr.New(fabricerr.MessageWriteError, err)
	}
	return nil
}

// Shutdown sends disconnect, stops and joins every stream thread, and
// returns to Unconnected (spec.md §4.C).
func (m *Machine) Shutdown() error {
	m.mu.RLock()
	connected := m.state == Connected
	m.mu.RUnlock()
	if !connected {
		return nil
	}
	_ = m.send(wire.Disconnect{})
	m.teardown()
	return nil
}

func (m *Machine) teardown() {
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		return
	}
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	conn := m.conn
	m.state = Unconnected
	m.conn = nil
	m.reader = nil
	m.writer = nil
	m.mu.Unlock()

	for _, s := range streams {
		s.running.Store(false)
	}
	m.wg.Wait()
	if conn != nil {
		conn.Close()
	}
}

// State reports the machine's current connection state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
