package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/MlkMahmud/peerwire/peer"
	"github.com/MlkMahmud/peerwire/utils"
)

type liveConnection struct {
	id   uuid.UUID
	conn *peer.Conn
}

// connectionPool tracks every connection the session owns, keyed by remote
// address. An address is reserved before dialling so that concurrent
// Connect calls never dial the same peer twice.
type connectionPool struct {
	connections map[string]liveConnection
	pending     *utils.Set
	mutex       sync.Mutex
}

func newConnectionPool() *connectionPool {
	return &connectionPool{
		connections: make(map[string]liveConnection),
		pending:     utils.NewSet(),
	}
}

func (p *connectionPool) reserve(addr string) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.connections[addr]; ok {
		return false
	}

	return p.pending.AddIfAbsent(addr)
}

// release drops a reservation that never became a connection.
func (p *connectionPool) release(addr string) {
	p.mutex.Lock()
	p.pending.Remove(addr)
	p.mutex.Unlock()
}

func (p *connectionPool) addConnection(addr string, id uuid.UUID, conn *peer.Conn) {
	p.mutex.Lock()
	p.pending.Remove(addr)
	p.connections[addr] = liveConnection{id: id, conn: conn}
	p.mutex.Unlock()
}

// removeConnection only removes the entry if it still belongs to id.
func (p *connectionPool) removeConnection(addr string, id uuid.UUID) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if live, ok := p.connections[addr]; ok && live.id == id {
		delete(p.connections, addr)
	}
}

func (p *connectionPool) closeConnections() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, live := range p.connections {
		live.conn.Close()
	}

	p.connections = make(map[string]liveConnection)
}

func (p *connectionPool) size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.connections) + p.pending.Size()
}

func (p *connectionPool) addresses() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	addrs := make([]string, 0, len(p.connections))

	for addr := range p.connections {
		addrs = append(addrs, addr)
	}

	return addrs
}
