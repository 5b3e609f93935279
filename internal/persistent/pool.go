package persistent

import (
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
)

// poolKey mirrors the original's tuple(args + [group_id]) cache key.
type poolKey string

func makeKey(argv []string, groupID string) poolKey {
	return poolKey(strings.Join(argv, "\x00") + "\x00" + groupID)
}

// Pool is a process-wide keyed cache of Managers, grounded on
// _PersistentManagerFactory: managers sharing the same argv and group id
// are reused, while group id "" (isolated execution) never shares.
type Pool struct {
	mu       sync.Mutex
	managers map[poolKey]*Manager
	isolated []*Manager
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{managers: make(map[poolKey]*Manager)}
}

// GetOrCreate returns the cached manager for (argv, groupID), starting a new
// one via New and Start if none exists yet, mirroring
// _PersistentManagerFactory.new_persistent_manager. groupID == "" always
// creates an isolated manager that is never reused.
func (p *Pool) GetOrCreate(ctx context.Context, argv []string, rpcAddr, groupID string, logger *queuelogger.QueueLogger) (*Manager, error) {
	if groupID == "" {
		m := New(argv, rpcAddr, groupID, logger)
		if err := m.Start(ctx); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.isolated = append(p.isolated, m)
		p.mu.Unlock()
		return m, nil
	}

	key := makeKey(argv, groupID)
	p.mu.Lock()
	if existing, ok := p.managers[key]; ok && existing.IsAlive() {
		p.mu.Unlock()
		return existing, nil
	}
	p.mu.Unlock()

	m := New(argv, rpcAddr, groupID, logger)
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.managers[key] = m
	p.mu.Unlock()
	return m, nil
}

// EvictIdle kills one pooled manager, taking the oldest isolated manager
// first and otherwise an arbitrary group manager, mirroring
// acquire_persistent_process's fallback ("kill an idle group manager or an
// isolated manager"). Managers are not tracked as busy or idle, so the
// victim may be one that is running a command. Returns whether a manager
// was evicted.
func (p *Pool) EvictIdle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.isolated) > 0 {
		victim := p.isolated[0]
		p.isolated = p.isolated[1:]
		_ = victim.Kill()
		return true
	}
	for key, m := range p.managers {
		delete(p.managers, key)
		_ = m.Kill()
		return true
	}
	return false
}

// KillAll kills every manager in the pool, mirroring kill_manager_processes.
func (p *Pool) KillAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.isolated {
		_ = m.Kill()
	}
	p.isolated = nil
	for key, m := range p.managers {
		_ = m.Kill()
		delete(p.managers, key)
	}
}
