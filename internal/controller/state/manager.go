package state

import (
	"sync"
	"time"
)

// DefaultTTL через сколько брошенный диалог забывается
const DefaultTTL = 15 * time.Minute

// Manager хранит диалоги по chat ID. Только в памяти процесса.
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		states: make(map[int64]*UserData),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetState текущий шаг; истёкший диалог считается отсутствующим
func (sm *Manager) GetState(chatID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if d, ok := sm.live(chatID); ok {
		return d.State
	}
	return StateNone
}

// SetState переводит диалог на шаг; StateNone завершает его
func (sm *Manager) SetState(chatID int64, state UserState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.states, chatID)
		return
	}

	d, ok := sm.live(chatID)
	if !ok {
		d = &UserData{Data: make(map[string]any)}
		sm.states[chatID] = d
	}
	d.State = state
	d.UpdatedAt = sm.now()
}

// SetData сохраняет значение в текущем диалоге
func (sm *Manager) SetData(chatID int64, key string, value any) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	d, ok := sm.live(chatID)
	if !ok {
		d = &UserData{Data: make(map[string]any)}
		sm.states[chatID] = d
	}
	d.Data[key] = value
	d.UpdatedAt = sm.now()
}

func (sm *Manager) GetData(chatID int64, key string) (any, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if d, ok := sm.live(chatID); ok {
		v, ok := d.Data[key]
		return v, ok
	}
	return nil, false
}

// Int64 типизированное чтение для идентификаторов
func (sm *Manager) Int64(chatID int64, key string) (int64, bool) {
	v, ok := sm.GetData(chatID, key)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func (sm *Manager) ClearState(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, chatID)
}

// Sweep удаляет истёкшие диалоги, возвращает сколько удалено
func (sm *Manager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id := range sm.states {
		if _, ok := sm.live(id); !ok {
			delete(sm.states, id)
			removed++
		}
	}
	return removed
}

// live вызывается под блокировкой
func (sm *Manager) live(chatID int64) (*UserData, bool) {
	d, ok := sm.states[chatID]
	if !ok || sm.now().Sub(d.UpdatedAt) > sm.ttl {
		return nil, false
	}
	return d, true
}
