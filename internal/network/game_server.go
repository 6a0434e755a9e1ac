// Package network реализует игровой websocket-сервер: приём соединений,
// маршрутизацию событий протокола и тикер рассылки снимков мира.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/annel0/avatar-sync/internal/eventbus"
	"github.com/annel0/avatar-sync/internal/logging"
	"github.com/annel0/avatar-sync/internal/protocol"
	"github.com/annel0/avatar-sync/internal/replication"
	"github.com/annel0/avatar-sync/internal/world/entity"
	"github.com/annel0/avatar-sync/internal/world/npc"
)

const (
	writeTimeout = 5 * time.Second
	// Клиент шлёт playerInput каждый кадр и updatePing раз в секунду,
	// поэтому молчание дольше минуты означает мёртвое соединение.
	readTimeout = 60 * time.Second
)

// GameServer владеет стором сущностей и множеством подписчиков.
// Все мутации стора сериализуются внутри Store; сервер лишь
// маршрутизирует события соединений и тикает мир.
type GameServer struct {
	store  *entity.Store
	engine *npc.Engine

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	upgrader websocket.Upgrader
	tick     time.Duration
	metrics  *serverMetrics
	batcher  *replication.BatchManager
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// subscriber — одно клиентское соединение.
// Мьютекс сериализует записи: в websocket нельзя писать конкурентно.
type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Options настраивает необязательные зависимости сервера.
type Options struct {
	Tick    time.Duration             // период рассылки; 0 — 50 мс
	Batcher *replication.BatchManager // публикация изменений в шину; nil — выключено
}

// NewGameServer создаёт сервер поверх стора и движка NPC
func NewGameServer(store *entity.Store, engine *npc.Engine, opts Options) *GameServer {
	if opts.Tick <= 0 {
		opts.Tick = 50 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &GameServer{
		store:       store,
		engine:      engine,
		subscribers: make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick:    opts.Tick,
		metrics: newServerMetrics(),
		batcher: opts.Batcher,
		log:     logging.GetNetworkLogger(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// RegisterRoutes монтирует websocket-апгрейд в gin-роутер
func (gs *GameServer) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", gin.WrapF(gs.HandleWS))
}

// Start запускает тикер мира: продвижение NPC и рассылку снимков.
// Обе операции выполняются одной горутиной, поэтому снимок не может
// застать NPC посреди обновления.
func (gs *GameServer) Start() {
	go gs.tickLoop()
}

// Stop останавливает тикер и закрывает все соединения
func (gs *GameServer) Stop() {
	gs.cancel()
	<-gs.done

	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, sub := range gs.subscribers {
		_ = sub.conn.Close()
	}
	gs.subscribers = make(map[string]*subscriber)
}

func (gs *GameServer) tickLoop() {
	defer close(gs.done)

	ticker := time.NewTicker(gs.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-gs.ctx.Done():
			return
		case now := <-ticker.C:
			dtMs := float64(now.Sub(last).Milliseconds())
			last = now

			start := time.Now()
			gs.engine.AdvanceAll(dtMs)
			snapshot := gs.store.SnapshotAll()
			gs.metrics.tickDuration.Observe(time.Since(start).Seconds())

			payload, err := protocol.Encode(protocol.EventPlayerListUpdate, snapshot)
			if err != nil {
				gs.log.Error("Ошибка сериализации снимка: %v", err)
				continue
			}
			gs.broadcast(payload, "")
			gs.metrics.broadcastsTotal.Inc()
		}
	}
}

// broadcast рассылает кадр всем подписчикам кроме exceptID.
// Список копируется под RLock; сами записи идут вне лока,
// чтобы медленный клиент не тормозил стор.
func (gs *GameServer) broadcast(payload []byte, exceptID string) {
	gs.mu.RLock()
	subs := make([]*subscriber, 0, len(gs.subscribers))
	for id, sub := range gs.subscribers {
		if id == exceptID {
			continue
		}
		subs = append(subs, sub)
	}
	gs.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.send(payload); err != nil {
			gs.log.Debug("Запись подписчику %s не удалась: %v", sub.id, err)
		}
	}
}

// sendTo доставляет кадр одному подписчику
func (gs *GameServer) sendTo(id string, payload []byte) {
	gs.mu.RLock()
	sub, ok := gs.subscribers[id]
	gs.mu.RUnlock()
	if ok {
		_ = sub.send(payload)
	}
}

// HandleWS обрабатывает websocket-апгрейд и ведёт соединение до разрыва
func (gs *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gs.log.Warn("Апгрейд не удался (%s): %v", r.RemoteAddr, err)
		return
	}

	connID := uuid.NewString()
	sub := &subscriber{id: connID, conn: conn}

	gs.log.Info("🔌 Новое соединение %s (%s)", connID, r.RemoteAddr)
	gs.readLoop(sub)
	gs.disconnect(sub)
}

// readLoop читает кадры соединения до ошибки чтения.
// Некорректный кадр не фатален: он просто пропускается.
func (gs *GameServer) readLoop(sub *subscriber) {
	for {
		_ = sub.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			gs.log.Debug("Нечитаемый кадр от %s: %v", sub.id, err)
			continue
		}
		gs.dispatch(sub, frame)
	}
}

// dispatch маршрутизирует кадр по имени события
func (gs *GameServer) dispatch(sub *subscriber, frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventJoin:
		gs.handleJoin(sub, frame)
	case protocol.EventPlayerInput:
		gs.handlePlayerInput(sub, frame)
	case protocol.EventPushAction:
		gs.handlePushAction(sub, frame)
	case protocol.EventUpdatePing:
		gs.handleUpdatePing(sub, frame)
	default:
		gs.log.Debug("Неизвестное событие %q от %s", frame.Event, sub.id)
	}
}

func (gs *GameServer) handleJoin(sub *subscriber, frame protocol.Frame) {
	var req protocol.JoinRequest
	if err := protocol.DecodePayload(frame, &req); err != nil {
		gs.log.Debug("Некорректный join от %s: %v", sub.id, err)
		// Продолжаем с пустыми полями: стор подставит дефолты
	}

	player, snapshot := gs.store.Join(sub.id, req.Name, req.ModelType)

	gs.mu.Lock()
	gs.subscribers[sub.id] = sub
	connected := len(gs.subscribers)
	gs.mu.Unlock()
	gs.metrics.connectedClients.Set(float64(connected))

	// Сначала init новому клиенту, затем немедленный newPlayer остальным:
	// первое появление игрока не ждёт следующего тика.
	initPayload, err := protocol.Encode(protocol.EventInit, protocol.InitPayload{
		ID:      player.ID,
		Players: snapshot,
	})
	if err == nil {
		_ = sub.send(initPayload)
	}

	if announce, err := protocol.Encode(protocol.EventNewPlayer, player); err == nil {
		gs.broadcast(announce, sub.id)
	}

	gs.log.Info("🎭 Игрок %s (%s, model=%s) вошёл в мир", player.Name, player.ID, player.ModelType)
	gs.publishLifecycle(eventbus.EventEntityJoined, player)
}

func (gs *GameServer) handlePlayerInput(sub *subscriber, frame protocol.Frame) {
	var upd entity.InputUpdate
	if err := protocol.DecodePayload(frame, &upd); err != nil {
		gs.log.Debug("Некорректный playerInput от %s: %v", sub.id, err)
		return
	}
	gs.store.ApplyInput(sub.id, upd)
	gs.metrics.inputsTotal.Inc()
}

func (gs *GameServer) handlePushAction(sub *subscriber, frame protocol.Frame) {
	var push protocol.PushActionPayload
	if err := protocol.DecodePayload(frame, &push); err != nil {
		gs.log.Debug("Некорректный pushAction от %s: %v", sub.id, err)
		return
	}

	outcome := gs.store.ApplyPush(push.TargetID, push.VectorX, push.VectorZ)
	switch outcome {
	case entity.PushNone:
		gs.metrics.pushesTotal.WithLabelValues("stale").Inc()
	case entity.PushApplied:
		gs.metrics.pushesTotal.WithLabelValues("npc").Inc()
		if target, ok := gs.store.Get(push.TargetID); ok {
			gs.publishLifecycle(eventbus.EventEntityPushed, target)
		}
	case entity.PushForward:
		// Позиция игрока авторитетна только на его клиенте:
		// сервер здесь чистый маршрутизатор директивы.
		gs.metrics.pushesTotal.WithLabelValues("player").Inc()
		payload, err := protocol.Encode(protocol.EventBePushed, protocol.BePushedPayload{
			X: push.VectorX,
			Z: push.VectorZ,
		})
		if err == nil {
			gs.sendTo(push.TargetID, payload)
		}
	}
}

func (gs *GameServer) handleUpdatePing(sub *subscriber, frame protocol.Frame) {
	var ping int
	if err := protocol.DecodePayload(frame, &ping); err != nil {
		return
	}
	gs.store.SetPing(sub.id, ping)
}

// disconnect снимает подписчика и сущность; повторный вызов безопасен
func (gs *GameServer) disconnect(sub *subscriber) {
	_ = sub.conn.Close()

	gs.mu.Lock()
	_, wasSubscribed := gs.subscribers[sub.id]
	delete(gs.subscribers, sub.id)
	connected := len(gs.subscribers)
	gs.mu.Unlock()
	gs.metrics.connectedClients.Set(float64(connected))

	departed, hadEntity := gs.store.Get(sub.id)
	if !gs.store.Remove(sub.id) {
		// Сущности уже нет — дубликат дисконнекта, делать нечего
		if !wasSubscribed {
			return
		}
	}

	if payload, err := protocol.Encode(protocol.EventPlayerDisconnected, sub.id); err == nil {
		gs.broadcast(payload, sub.id)
	}

	gs.log.Info("👋 Соединение %s закрыто", sub.id)
	if hadEntity {
		gs.publishLifecycle(eventbus.EventEntityLeft, departed)
	}
}

// publishLifecycle публикует событие жизненного цикла в шину
// и, если включена репликация, кладёт его в пакетный буфер.
func (gs *GameServer) publishLifecycle(eventType string, e entity.Entity) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	_ = eventbus.Publish(gs.ctx, eventbus.NewEnvelope("game_server", eventType, 5, data))

	if gs.batcher != nil {
		gs.batcher.AddChange(replication.Change{
			Data:       data,
			Priority:   5,
			Timestamp:  time.Now().UTC(),
			ChangeType: eventType,
		})
	}
}
