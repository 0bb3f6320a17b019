// Package modbusmgr multiplexes typed Modbus/TCP register reads and writes
// across a set of named client endpoints (inverters and the grid data
// manager), presenting per-client and fan-out operations behind a single
// Manager.
package modbusmgr

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/goburrow/modbus"
	"golang.org/x/sync/errgroup"

	"github.com/hartman-ems/battery-ems/codec"
)

const dummyReadValue = 12345

// peer is one entry in a Manager: either a live Modbus/TCP connection, or a
// dummy (handler and client are both nil).
type peer struct {
	endpoint ClientEndpoint
	handler  *modbus.TCPClientHandler
	client   modbus.Client
}

func (p *peer) isDummy() bool { return p.client == nil }

// Manager owns one Modbus/TCP connection per configured ClientEndpoint and
// serializes register access per connection while allowing fan-out across
// connections to run concurrently.
type Manager struct {
	logger *log.Logger

	mu     sync.Mutex
	order  []string
	peers  map[string]*peer
	closed bool
}

// NewManager builds a Manager with one peer per endpoint. No network I/O
// happens until Connect is called. Dummy endpoints (see ClientEndpoint.IsDummy)
// never touch the network and always succeed.
func NewManager(endpoints []ClientEndpoint, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		logger: logger,
		peers:  make(map[string]*peer, len(endpoints)),
	}
	for _, ep := range endpoints {
		p := &peer{endpoint: ep}
		if !ep.IsDummy() {
			timeout := ep.Timeout
			if timeout <= 0 {
				timeout = DefaultTimeout
			}
			handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", ep.Host, ep.Port))
			handler.Timeout = timeout
			handler.Logger = logger
			p.handler = handler
			p.client = modbus.NewClient(handler)
		}
		m.peers[ep.Name] = p
		m.order = append(m.order, ep.Name)
	}
	return m
}

// Connect dials every non-dummy peer. If any peer fails to connect, Connect
// closes whatever it already opened and returns a *ConnectFailed for the
// first failure.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var connected []*peer
	for _, name := range m.order {
		p := m.peers[name]
		if p.isDummy() {
			continue
		}
		if err := p.handler.Connect(); err != nil {
			for _, c := range connected {
				c.handler.Close()
			}
			return &ConnectFailed{Name: name, Err: err}
		}
		connected = append(connected, p)
		m.logger.Printf("modbusmgr: connected to %s (%s:%d)", name, p.endpoint.Host, p.endpoint.Port)
	}
	return nil
}

// Close disconnects every non-dummy peer. Close is idempotent; a Manager
// must not be used again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var firstErr error
	for _, name := range m.order {
		p := m.peers[name]
		if p.isDummy() {
			continue
		}
		if err := p.handler.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerKind classifies a Modbus address by its leading digit: '3' for
// input registers, '4' for holding registers. Any other leading digit is a
// programmer error, not a runtime condition callers should handle.
func registerKind(address int) (holding bool) {
	s := strconv.Itoa(address)
	switch s[0] {
	case '4':
		return true
	case '3':
		return false
	default:
		panic(fmt.Sprintf("modbusmgr: address %d is neither a 3xxxx input register nor a 4xxxx holding register", address))
	}
}

func (m *Manager) peerFor(name string) (*peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("modbusmgr: manager is closed")
	}
	p, ok := m.peers[name]
	if !ok {
		panic(fmt.Sprintf("modbusmgr: no such client %q", name))
	}
	return p, nil
}

// ReadOne reads a single typed value named by address/dtype/scaling from the
// client called name, addressing deviceID as the Modbus slave/unit id.
func (m *Manager) ReadOne(ctx context.Context, name string, address int, dtype codec.DataType, deviceID byte, scaling any) (any, error) {
	p, err := m.peerFor(name)
	if err != nil {
		return nil, err
	}
	return m.read(ctx, p, address, dtype, deviceID, scaling)
}

// WriteOne writes words (already scaled/encoded by the caller) to a holding
// register on the client called name.
func (m *Manager) WriteOne(ctx context.Context, name string, address int, words []uint16, deviceID byte) error {
	p, err := m.peerFor(name)
	if err != nil {
		return err
	}
	return m.write(ctx, p, address, words, deviceID)
}

// ReadAll reads the same address/dtype/scaling from every configured client
// concurrently. Any single failure fails the whole call once every read has
// finished (reads already in flight are not interrupted): partial results
// are never returned.
func (m *Manager) ReadAll(ctx context.Context, address int, dtype codec.DataType, deviceID byte, scaling any) (map[string]any, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("modbusmgr: manager is closed")
	}
	names := append([]string(nil), m.order...)
	peers := make([]*peer, len(names))
	for i, n := range names {
		peers[i] = m.peers[n]
	}
	m.mu.Unlock()

	results := make([]any, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i := range names {
		i := i
		g.Go(func() error {
			v, err := m.read(gctx, peers[i], address, dtype, deviceID, scaling)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(names))
	for i, n := range names {
		out[n] = results[i]
	}
	return out, nil
}

// WriteAll writes the same pre-encoded words to a holding register on every
// configured client concurrently. It waits for every write and returns the
// first error; writes that succeeded on other clients are not undone.
func (m *Manager) WriteAll(ctx context.Context, address int, words []uint16, deviceID byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("modbusmgr: manager is closed")
	}
	peers := make([]*peer, 0, len(m.order))
	for _, n := range m.order {
		peers = append(peers, m.peers[n])
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			return m.write(gctx, p, address, words, deviceID)
		})
	}
	return g.Wait()
}

func (m *Manager) read(ctx context.Context, p *peer, address int, dtype codec.DataType, deviceID byte, scaling any) (any, error) {
	if p.isDummy() {
		return codec.Decode(dtype, zeroPlusSentinel(dummyReadValue, dtype), scaling)
	}

	n, err := codec.WordsFor(dtype)
	if err != nil {
		return nil, err
	}

	p.handler.SlaveId = deviceID
	var raw []byte
	if registerKind(address) {
		raw, err = p.client.ReadHoldingRegisters(uint16(address), uint16(n))
	} else {
		raw, err = p.client.ReadInputRegisters(uint16(address), uint16(n))
	}
	if err != nil {
		return nil, translateError(p.endpoint.Name, err)
	}

	words := bytesToWords(raw)
	return codec.Decode(dtype, words, scaling)
}

func (m *Manager) write(ctx context.Context, p *peer, address int, words []uint16, deviceID byte) error {
	if p.isDummy() {
		return nil
	}

	p.handler.SlaveId = deviceID
	payload := wordsToBytes(words)

	var err error
	if len(words) == 1 {
		_, err = p.client.WriteSingleRegister(uint16(address), words[0])
	} else {
		_, err = p.client.WriteMultipleRegisters(uint16(address), uint16(len(words)), payload)
	}
	if err != nil {
		return translateError(p.endpoint.Name, err)
	}
	return nil
}

// translateError maps a goburrow/modbus error into the typed error taxonomy:
// *modbus.ModbusError becomes a *ModbusError, everything else (timeouts,
// broken pipes, EOF) becomes a *TransportError.
func translateError(name string, err error) error {
	if me, ok := err.(*modbus.ModbusError); ok {
		return &ModbusError{Name: name, FunctionCode: me.FunctionCode, ExceptionCode: me.ExceptionCode}
	}
	return &TransportError{Name: name, Err: err}
}

func bytesToWords(b []byte) []uint16 {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}
	return words
}

func wordsToBytes(words []uint16) []byte {
	b := make([]byte, len(words)*2)
	for i, w := range words {
		b[i*2] = byte(w >> 8)
		b[i*2+1] = byte(w)
	}
	return b
}

// zeroPlusSentinel fabricates a words slice that decodes to dummyReadValue
// regardless of dtype, for the DummyClient read path.
func zeroPlusSentinel(value int64, dtype codec.DataType) []uint16 {
	n, _ := codec.WordsFor(dtype)
	words := make([]uint16, n)
	words[len(words)-1] = uint16(value)
	return words
}
