package canvas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/logging"
)

// Mutation coalescing timings.
const (
	SizeDebounceDelay    = 180 * time.Millisecond
	PromptDebounceDelay  = 200 * time.Millisecond
	DeleteAnimationDelay = 200 * time.Millisecond
)

// AgentService is the remote mutation surface the manager reconciles
// against. The bridge implements it over the gateway RPC methods.
type AgentService interface {
	CreateAgent(ctx context.Context, a domain.Agent) (*domain.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
	MoveAgent(ctx context.Context, id string, x, y float64) error
	ResizeAgent(ctx context.Context, id string, x, y, width, height float64) error
	UpdateAgentPrompt(ctx context.Context, id, prompt string) error
	ConnectAgents(ctx context.Context, sourceID, targetID string) error
	DisconnectAgent(ctx context.Context, id string) error
}

// Manager maintains the derived, validated agent list for one canvas and
// applies mutations optimistically: the local cache is patched before the
// network round-trip resolves and restored from a snapshot if the call
// fails. Subscription pushes replace the cache wholesale, so local state
// always converges to server state.
type Manager struct {
	mu      sync.Mutex
	svc     AgentService
	log     *logging.Logger
	agents  []domain.Agent
	exiting map[string]bool

	sizeDeb   *Debouncer
	promptDeb *Debouncer

	// sizeRevert holds, per agent, the rect from before the first patch
	// of a pending resize burst, for rollback if the coalesced write fails.
	sizeRevert map[string]Rect

	// deleteDelay lets the exit animation play before the remove call.
	deleteDelay time.Duration

	// onInvalidate asks the data layer to refetch the authoritative list
	// after a confirmed create, replacing any placeholder record.
	onInvalidate func()
}

// NewManager creates a manager over the given mutation service.
// onInvalidate may be nil.
func NewManager(svc AgentService, log *logging.Logger, onInvalidate func()) *Manager {
	return &Manager{
		svc:          svc,
		log:          log,
		exiting:      make(map[string]bool),
		sizeRevert:   make(map[string]Rect),
		sizeDeb:      NewDebouncer(SizeDebounceDelay),
		promptDeb:    NewDebouncer(PromptDebounceDelay),
		deleteDelay:  DeleteAnimationDelay,
		onInvalidate: onInvalidate,
	}
}

// SetAgents replaces the cached list from a subscription push. Malformed
// records are filtered out rather than surfaced.
func (m *Manager) SetAgents(raw []domain.Agent) {
	valid := make([]domain.Agent, 0, len(raw))
	for _, a := range raw {
		if !a.Valid() {
			if m.log != nil {
				m.log.Debug().Str("agentId", a.ID).Msg("dropping malformed agent record")
			}
			continue
		}
		valid = append(valid, a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = valid
}

// Agents returns a copy of the current validated agent list.
func (m *Manager) Agents() []domain.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Agent, len(m.agents))
	copy(out, m.agents)
	return out
}

// Get returns a cached agent by ID.
func (m *Manager) Get(id string) (domain.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Agent{}, false
}

// Exiting reports whether an agent is playing its delete animation.
func (m *Manager) Exiting(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exiting[id]
}

func (m *Manager) snapshotLocked() []domain.Agent {
	snap := make([]domain.Agent, len(m.agents))
	copy(snap, m.agents)
	return snap
}

func (m *Manager) restore(snap []domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = snap
}

// patch applies fn to the cached agent with the given ID, if present.
func (m *Manager) patch(id string, fn func(*domain.Agent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			fn(&m.agents[i])
			return
		}
	}
}

// Create synthesizes a placeholder agent, splices it into the cache
// immediately, then issues the create call. On failure the pre-mutation
// snapshot is restored; on success the placeholder is swapped for the
// authoritative record and the cache is invalidated.
func (m *Manager) Create(ctx context.Context, a domain.Agent) (*domain.Agent, error) {
	if a.Width == 0 {
		a.Width = domain.DefaultAgentWidth
	}
	if a.Height == 0 {
		a.Height = domain.DefaultAgentHeight
	}

	tempID := "temp-" + uuid.New().String()
	placeholder := a
	placeholder.ID = tempID
	placeholder.Status = domain.InitialStatus(a.Type)
	if placeholder.Model == "" {
		placeholder.Model = domain.ModelNormal
	}
	now := time.Now()
	placeholder.CreatedAt = now
	placeholder.UpdatedAt = now

	m.mu.Lock()
	snap := m.snapshotLocked()
	m.agents = append(m.agents, placeholder)
	m.mu.Unlock()

	created, err := m.svc.CreateAgent(ctx, a)
	if err != nil {
		m.restore(snap)
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	m.mu.Lock()
	for i := range m.agents {
		if m.agents[i].ID == tempID {
			m.agents[i] = *created
			break
		}
	}
	m.mu.Unlock()

	if m.onInvalidate != nil {
		m.onInvalidate()
	}
	return created, nil
}

// Delete flags the agent as exiting, waits for the exit animation, then
// optimistically removes it and issues the remove call. The agent's
// pre-call record is captured before the deleting-status patch, so a
// failed remove puts it back with its original status instead of stuck
// in the exit state. Only the affected agent is touched on rollback.
func (m *Manager) Delete(ctx context.Context, id string) error {
	prev, tracked := m.Get(id)

	m.patch(id, func(a *domain.Agent) { a.Status = domain.StatusDeleting })
	m.mu.Lock()
	m.exiting[id] = true
	m.mu.Unlock()

	if m.deleteDelay > 0 {
		select {
		case <-time.After(m.deleteDelay):
		case <-ctx.Done():
			if tracked {
				m.patch(id, func(a *domain.Agent) { a.Status = prev.Status })
			}
			m.clearExiting(id)
			return ctx.Err()
		}
	}

	m.mu.Lock()
	idx := -1
	kept := m.agents[:0]
	for i, a := range m.agents {
		if a.ID == id {
			idx = i
			continue
		}
		kept = append(kept, a)
	}
	m.agents = kept
	m.mu.Unlock()

	err := m.svc.DeleteAgent(ctx, id)
	m.clearExiting(id)
	if err != nil {
		if tracked && idx >= 0 {
			m.insertAt(idx, prev)
		}
		return fmt.Errorf("deleting agent: %w", err)
	}
	return nil
}

// insertAt splices an agent back into the cache at its former position,
// clamping if the list shrank in the meantime.
func (m *Manager) insertAt(idx int, a domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx > len(m.agents) {
		idx = len(m.agents)
	}
	m.agents = append(m.agents, domain.Agent{})
	copy(m.agents[idx+1:], m.agents[idx:])
	m.agents[idx] = a
}

func (m *Manager) clearExiting(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exiting, id)
}

// Move commits a position immediately (drag-end path).
func (m *Manager) Move(ctx context.Context, id string, x, y float64) error {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.patch(id, func(a *domain.Agent) { a.X, a.Y = x, y })

	if err := m.svc.MoveAgent(ctx, id, x, y); err != nil {
		m.restore(snap)
		return fmt.Errorf("moving agent: %w", err)
	}
	return nil
}

// Resize patches the cache immediately and coalesces the remote write
// behind a per-agent debounce, so continuous handle drags produce one
// write instead of one per pointer move. Rollback reverts only this
// agent's rect, to its value from before the burst started, leaving
// concurrent pushes and other agents' patches intact.
func (m *Manager) Resize(id string, rect Rect) {
	m.mu.Lock()
	if _, pending := m.sizeRevert[id]; !pending {
		for _, a := range m.agents {
			if a.ID == id {
				m.sizeRevert[id] = Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
				break
			}
		}
	}
	m.mu.Unlock()

	m.patch(id, func(a *domain.Agent) {
		a.X, a.Y = rect.X, rect.Y
		a.Width, a.Height = rect.Width, rect.Height
	})

	m.sizeDeb.Trigger(id, func() {
		m.mu.Lock()
		revert, tracked := m.sizeRevert[id]
		delete(m.sizeRevert, id)
		m.mu.Unlock()

		if err := m.svc.ResizeAgent(context.Background(), id, rect.X, rect.Y, rect.Width, rect.Height); err != nil {
			if m.log != nil {
				m.log.Warn().Err(err).Str("agentId", id).Msg("resize write failed")
			}
			if tracked {
				m.patch(id, func(a *domain.Agent) {
					a.X, a.Y = revert.X, revert.Y
					a.Width, a.Height = revert.Width, revert.Height
				})
			}
		}
	})
}

// UpdatePrompt patches the cache and debounces the remote write per
// agent, so rapid edits to one agent's prompt never cancel a pending
// write for another agent.
func (m *Manager) UpdatePrompt(id, prompt string) {
	m.patch(id, func(a *domain.Agent) { a.Prompt = prompt })

	m.promptDeb.Trigger(id, func() {
		if err := m.svc.UpdateAgentPrompt(context.Background(), id, prompt); err != nil && m.log != nil {
			m.log.Warn().Err(err).Str("agentId", id).Msg("prompt write failed")
		}
	})
}

// Connect validates and applies a symmetric pairing between two agents.
// Validation failures reject synchronously without touching either agent.
func (m *Manager) Connect(ctx context.Context, sourceID, targetID string) error {
	source, ok := m.Get(sourceID)
	if !ok {
		return fmt.Errorf("unknown source agent %q", sourceID)
	}
	target, ok := m.Get(targetID)
	if !ok {
		return fmt.Errorf("unknown target agent %q", targetID)
	}
	if err := domain.ValidateConnection(source, target); err != nil {
		return err
	}

	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.patch(sourceID, func(a *domain.Agent) { a.ConnectedAgentID = targetID })
	m.patch(targetID, func(a *domain.Agent) { a.ConnectedAgentID = sourceID })

	if err := m.svc.ConnectAgents(ctx, sourceID, targetID); err != nil {
		m.restore(snap)
		return fmt.Errorf("connecting agents: %w", err)
	}
	return nil
}

// Disconnect clears a pairing starting from either endpoint.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	agent, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("unknown agent %q", id)
	}
	peer := agent.ConnectedAgentID

	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.patch(id, func(a *domain.Agent) { a.ConnectedAgentID = "" })
	if peer != "" {
		m.patch(peer, func(a *domain.Agent) { a.ConnectedAgentID = "" })
	}

	if err := m.svc.DisconnectAgent(ctx, id); err != nil {
		m.restore(snap)
		return fmt.Errorf("disconnecting agent: %w", err)
	}
	return nil
}

// ConnectedPairs returns each symmetric pairing once, source first.
func (m *Manager) ConnectedPairs() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var pairs [][2]string
	for _, a := range m.agents {
		if a.ConnectedAgentID == "" || seen[a.ID] || seen[a.ConnectedAgentID] {
			continue
		}
		pairs = append(pairs, [2]string{a.ID, a.ConnectedAgentID})
		seen[a.ID] = true
		seen[a.ConnectedAgentID] = true
	}
	return pairs
}

// AvailableTargets returns the agents a given source agent could connect
// to: compatible types, not self, and not already paired elsewhere.
func (m *Manager) AvailableTargets(sourceID string) []domain.Agent {
	source, ok := m.Get(sourceID)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Agent
	for _, a := range m.agents {
		if a.ID == sourceID {
			continue
		}
		if err := domain.ValidateConnection(source, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// PlaceNew returns a free content-space position for a new agent within
// the current viewport, avoiding existing agents.
func (m *Manager) PlaceNew(vp domain.Viewport, container Size, elem Size, padding float64) Point {
	m.mu.Lock()
	existing := make([]Rect, 0, len(m.agents))
	for _, a := range m.agents {
		existing = append(existing, Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height})
	}
	m.mu.Unlock()

	return FindFreePosition(vp, container, existing, elem, padding)
}

// SetDeleteDelay overrides the exit-animation wait.
func (m *Manager) SetDeleteDelay(d time.Duration) {
	m.deleteDelay = d
}

// Close flushes pending debounced writes so edits made just before
// teardown still reach the server.
func (m *Manager) Close() {
	m.sizeDeb.Close()
	m.promptDeb.Close()
}
