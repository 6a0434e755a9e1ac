package entity

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Store управляет всеми сущностями мира.
// Это единственная разделяемая структура сервера: все мутации и чтения
// сериализуются одним мьютексом на весь стор, без блокировок на сущность.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	npcLimit  float64 // полуширина квадрата самоограничения NPC (±28)
	pushLimit float64 // полуширина квадрата для толчков (±30)
	npcSeq    map[string]int
}

// NewStore создаёт пустой стор с указанными границами арены
func NewStore(npcLimit, pushLimit float64) *Store {
	return &Store{
		entities:  make(map[string]*Entity),
		npcLimit:  npcLimit,
		pushLimit: pushLimit,
		npcSeq:    make(map[string]int),
	}
}

// NPCMapLimit возвращает границу самоограничения NPC
func (s *Store) NPCMapLimit() float64 { return s.npcLimit }

// PushMapLimit возвращает границу для толчков и движения игроков
func (s *Store) PushMapLimit() float64 { return s.pushLimit }

// Join создаёт сущность игрока для нового соединения и возвращает
// её вместе с полным снимком стора на момент входа.
// Позиция рандомизируется около центра, поворот нулевой.
func (s *Store) Join(connID, name, modelType string) (Entity, map[string]Entity) {
	if name == "" {
		short := connID
		if len(short) > 4 {
			short = short[:4]
		}
		name = "Player_" + short
	}
	if modelType == "" {
		modelType = ModelFox
	}

	player := &Entity{
		ID:        connID,
		Name:      name,
		ModelType: modelType,
		IsNPC:     false,
		X:         (rand.Float64() - 0.5) * 10,
		Z:         (rand.Float64() - 0.5) * 10,
		Rotation:  0,
		Action:    ActionSurvey,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[connID] = player
	return *player, s.snapshotLocked()
}

// SpawnNPC создаёт автономную сущность указанной модели и возвращает её.
// NPC создаются один раз при старте процесса и никогда не удаляются.
func (s *Store) SpawnNPC(modelType string) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.npcSeq[modelType]
	s.npcSeq[modelType] = idx + 1

	action := ActionSurvey
	if modelType == ModelCesium {
		action = ActionRun
	}

	npc := &Entity{
		ID:        fmt.Sprintf("npc_%s_%d", modelType, idx),
		ModelType: modelType,
		IsNPC:     true,
		X:         (rand.Float64() - 0.5) * 40,
		Z:         (rand.Float64() - 0.5) * 40,
		Rotation:  rand.Float64() * 2 * math.Pi,
		Action:    action,
	}
	s.entities[npc.ID] = npc
	return *npc
}

// ApplyInput накатывает частичное обновление на сущность соединения.
// Неизвестный или уже удалённый id — тихий no-op: гонка входящего
// сообщения с дисконнектом ожидаема и не является ошибкой.
func (s *Store) ApplyInput(connID string, upd InputUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[connID]
	if !ok {
		return
	}
	if upd.X != nil {
		e.X = clamp(*upd.X, s.pushLimit)
	}
	if upd.Z != nil {
		e.Z = clamp(*upd.Z, s.pushLimit)
	}
	if upd.Rotation != nil {
		e.Rotation = *upd.Rotation
	}
	if upd.Action != nil {
		e.Action = *upd.Action
	}
	if upd.Ping != nil {
		e.Ping = *upd.Ping
	}
}

// SetPing обновляет оценку RTT для сущности (updatePing)
func (s *Store) SetPing(connID string, ping int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[connID]; ok {
		e.Ping = ping
	}
}

// Remove удаляет сущность соединения. Повторный вызов для того же id
// безопасен и возвращает false.
func (s *Store) Remove(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[connID]; !ok {
		return false
	}
	delete(s.entities, connID)
	return true
}

// Get возвращает копию сущности по id
func (s *Store) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// SnapshotAll возвращает полную согласованную копию стора.
// Снимок делается под локом целиком, поэтому не может быть
// наблюдён с частично применённой мутацией.
func (s *Store) SnapshotAll() map[string]Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]Entity {
	snapshot := make(map[string]Entity, len(s.entities))
	for id, e := range s.entities {
		snapshot[id] = *e
	}
	return snapshot
}

// ApplyPush обрабатывает толчок в адрес сущности targetID.
// NPC сервер двигает сам (их позиция принадлежит серверу),
// игроку смещение не применяется — оно пересылается его клиенту.
func (s *Store) ApplyPush(targetID string, dx, dz float64) PushOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.entities[targetID]
	if !ok {
		return PushNone
	}
	if !target.IsNPC {
		return PushForward
	}
	target.X = clamp(target.X+dx, s.npcLimit)
	target.Z = clamp(target.Z+dz, s.npcLimit)
	return PushApplied
}

// UpdateNPC применяет мутацию к NPC под локом стора.
// Используется движком поведения: вся логика тика выполняется
// внутри fn, поэтому снимок никогда не видит NPC наполовину обновлённым.
func (s *Store) UpdateNPC(id string, fn func(*Entity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok || !e.IsNPC {
		return
	}
	fn(e)
}

// Counts возвращает количество игроков и NPC
func (s *Store) Counts() (players, npcs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.IsNPC {
			npcs++
		} else {
			players++
		}
	}
	return
}

func clamp(v, limit float64) float64 {
	if v < -limit {
		return -limit
	}
	if v > limit {
		return limit
	}
	return v
}
