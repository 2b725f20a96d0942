package crdt

import "sync"

// BodyManager lazily creates and holds Body CRDT handles for a workspace,
// keyed by their full doc-name ("body:<ws>/<path>"). A Body document is
// created the first time its doc-name is written or read and persists for
// the lifetime of the manager.
type BodyManager struct {
	mu       sync.Mutex
	deviceID string
	bodies   map[string]*Body
}

// NewBodyManager creates an empty manager. deviceID is passed through to
// every Body it creates.
func NewBodyManager(deviceID string) *BodyManager {
	return &BodyManager{deviceID: deviceID, bodies: make(map[string]*Body)}
}

// GetOrCreate returns the Body handle for docName, creating an empty one on
// first access.
func (m *BodyManager) GetOrCreate(docName string) *Body {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bodies[docName]; ok {
		return b
	}
	b := NewBody(docName, m.deviceID)
	m.bodies[docName] = b
	return b
}

// Names returns every doc-name currently held by the manager.
func (m *BodyManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.bodies))
	for name := range m.bodies {
		out = append(out, name)
	}
	return out
}

// Delete removes a body handle, used when rebuilding from history.
func (m *BodyManager) Delete(docName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bodies, docName)
}
