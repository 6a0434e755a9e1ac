// Package npc содержит движок автономного поведения NPC.
// Скрытое состояние (таймер, целевой поворот, скорость) живёт только здесь
// и не сериализуется: клиенты видят лишь результирующие action/position/rotation.
package npc

import (
	"math"
	"math/rand"
	"sync"

	"github.com/annel0/avatar-sync/internal/logging"
	"github.com/annel0/avatar-sync/internal/world/entity"
)

// Интервал перевыбора поведения: равномерно [2000, 5000) мс.
const (
	behaviorTimerBaseMs   = 2000.0
	behaviorTimerSpreadMs = 3000.0

	// Фиксированный коэффициент подтягивания поворота к целевому.
	// Применяется один раз за тик независимо от его длительности.
	rotationGain = 0.05

	// Скорости заданы в единицах «за эталонный тик» 50 мс.
	tickUnitMs = 50.0

	foxWalkSpeed  = 0.05
	foxRunSpeed   = 0.15
	cesiumSpeed   = 0.04
	headingReRoll = 0.7 // вероятность выбрать новый целевой поворот
)

// brain хранит скрытое состояние одного NPC между тиками
type brain struct {
	timerMs        float64
	targetRotation float64
	moveSpeed      float64
}

// Engine продвигает всех NPC на каждом тике рассылки.
// Собственного таймера у движка нет: AdvanceAll вызывается из
// горутины тика, поэтому снимок никогда не видит NPC посреди
// обновления. Spawn допустим из других горутин, карта мозгов
// защищена мьютексом.
type Engine struct {
	store *entity.Store
	log   *logging.Logger

	mu     sync.RWMutex
	brains map[string]*brain
}

// NewEngine создаёт движок поведения поверх стора
func NewEngine(store *entity.Store) *Engine {
	return &Engine{
		store:  store,
		log:    logging.GetWorldLogger(),
		brains: make(map[string]*brain),
	}
}

// Spawn создаёт NPC указанной модели и сразу выбирает ему первое поведение
func (en *Engine) Spawn(modelType string) entity.Entity {
	e := en.store.SpawnNPC(modelType)
	b := &brain{targetRotation: e.Rotation}

	var spawned entity.Entity
	en.store.UpdateNPC(e.ID, func(npc *entity.Entity) {
		b.pickNewBehavior(npc)
		spawned = *npc
	})

	en.mu.Lock()
	en.brains[e.ID] = b
	en.mu.Unlock()

	en.log.Info("NPC %s (%s) создан в (%.1f, %.1f)", e.ID, modelType, spawned.X, spawned.Z)
	return spawned
}

// Count возвращает число NPC под управлением движка
func (en *Engine) Count() int {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return len(en.brains)
}

// AdvanceAll продвигает всех NPC на прошедшее время тика
func (en *Engine) AdvanceAll(dtMs float64) {
	limit := en.store.NPCMapLimit()

	en.mu.Lock()
	defer en.mu.Unlock()
	for id, b := range en.brains {
		en.store.UpdateNPC(id, func(npc *entity.Entity) {
			b.advance(npc, dtMs, limit)
		})
	}
}

// pickNewBehavior перевыбирает состояние, скорость и (с вероятностью 0.7)
// целевой поворот. Модель fox имеет три состояния, cesium всегда бежит.
func (b *brain) pickNewBehavior(npc *entity.Entity) {
	b.timerMs = behaviorTimerBaseMs + rand.Float64()*behaviorTimerSpreadMs

	if npc.ModelType == entity.ModelFox {
		roll := rand.Float64()
		switch {
		case roll < 0.4:
			npc.Action = entity.ActionSurvey
			b.moveSpeed = 0
		case roll < 0.8:
			npc.Action = entity.ActionWalk
			b.moveSpeed = foxWalkSpeed
		default:
			npc.Action = entity.ActionRun
			b.moveSpeed = foxRunSpeed
		}
	} else {
		npc.Action = entity.ActionRun
		b.moveSpeed = cesiumSpeed
	}

	if rand.Float64() < headingReRoll {
		b.targetRotation = npc.Rotation + (rand.Float64()-0.5)*math.Pi
	}
}

// advance выполняет один тик поведения: таймер, поворот, движение, границы
func (b *brain) advance(npc *entity.Entity, dtMs, limit float64) {
	b.timerMs -= dtMs
	if b.timerMs <= 0 {
		b.pickNewBehavior(npc)
	}

	// Экспоненциальное подтягивание к целевому повороту (фиксированный шаг)
	npc.Rotation += (b.targetRotation - npc.Rotation) * rotationGain

	if b.moveSpeed <= 0 {
		return
	}

	step := b.moveSpeed * dtMs / tickUnitMs
	npc.X += math.Sin(npc.Rotation) * step
	npc.Z += math.Cos(npc.Rotation) * step

	// За границей не отскакиваем: прижимаем к краю и
	// разворачиваем целевой поворот обратно к центру.
	if npc.X < -limit || npc.X > limit || npc.Z < -limit || npc.Z > limit {
		b.targetRotation = math.Atan2(-npc.X, -npc.Z) + (rand.Float64() - 0.5)
		npc.X = math.Max(-limit, math.Min(limit, npc.X))
		npc.Z = math.Max(-limit, math.Min(limit, npc.Z))
	}
}
