package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/avatar-sync/internal/logging"
	"github.com/annel0/avatar-sync/internal/protocol"
	"github.com/annel0/avatar-sync/internal/world/entity"
)

const (
	joinTimeout  = 10 * time.Second
	pingInterval = time.Second
)

// Client держит websocket-соединение с игровым сервером и ведёт полный
// клиентский конвейер: буфер задержки, согласование чужих аватаров и
// локального игрока.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	log     *logging.Logger

	mu       sync.Mutex
	player   *LocalPlayer
	inputs   *LatencyBuffer
	recon    *Reconciler
	controls ControlState

	lastPing     int
	pingSentAt   time.Time
	disconnected chan struct{}
	closeOnce    sync.Once
}

// Dial подключается к серверу и выполняет join-рукопожатие.
// Возвращает клиент только после получения init: до него нет ни
// собственного id, ни стартового списка сущностей.
func Dial(ctx context.Context, url, name, modelType string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("подключение к %s: %w", url, err)
	}

	c := &Client{
		conn:         conn,
		log:          logging.GetClientLogger(),
		inputs:       NewLatencyBuffer(),
		controls:     ControlState{ShowRemote: true},
		disconnected: make(chan struct{}),
	}

	if err := c.send(protocol.EventJoin, protocol.JoinRequest{Name: name, ModelType: modelType}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	init, err := c.awaitInit()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	self, ok := init.Players[init.ID]
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("init без собственной сущности %s", init.ID)
	}
	c.player = NewLocalPlayer(init.ID, self.X, self.Z, self.Rotation)
	c.recon = NewReconciler(init.ID)
	c.recon.Apply(init.Players)
	c.log.Info("Вошли в мир как %s (%s), видим %d сущностей", self.Name, init.ID, len(init.Players))

	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPing = int(time.Since(c.pingSentAt).Milliseconds())
		c.mu.Unlock()
		return nil
	})

	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// awaitInit читает кадры до init; ранние рассылки до него пропускаются
func (c *Client) awaitInit() (protocol.InitPayload, error) {
	var init protocol.InitPayload
	deadline := time.Now().Add(joinTimeout)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return init, fmt.Errorf("ожидание init: %w", err)
		}
		frame, err := protocol.Decode(raw)
		if err != nil || frame.Event != protocol.EventInit {
			continue
		}
		if err := protocol.DecodePayload(frame, &init); err != nil {
			return init, fmt.Errorf("разбор init: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Time{})
		return init, nil
	}
}

func (c *Client) send(event string, payload interface{}) error {
	raw, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.disconnected) })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Info("Соединение с сервером закрыто: %v", err)
			return
		}
		frame, err := protocol.Decode(raw)
		if err != nil {
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventPlayerListUpdate:
		// Снимки сервера применяются сразу по приходу: искусственная
		// задержка касается только собственного ввода, не рендера мира
		var snapshot map[string]entity.Entity
		if err := protocol.DecodePayload(frame, &snapshot); err != nil {
			return
		}
		c.mu.Lock()
		c.recon.Apply(snapshot)
		c.mu.Unlock()

	case protocol.EventNewPlayer:
		// Появление нового игрока показывается сразу, не дожидаясь
		// созревания снимка в буфере задержки
		var e entity.Entity
		if err := protocol.DecodePayload(frame, &e); err != nil {
			return
		}
		c.mu.Lock()
		c.recon.Apply(mergeEntity(c.snapshotOfRemotes(), e))
		c.mu.Unlock()
		c.log.Debug("Новый игрок %s (%s)", e.Name, e.ID)

	case protocol.EventPlayerDisconnected:
		var id string
		if err := protocol.DecodePayload(frame, &id); err != nil {
			return
		}
		c.mu.Lock()
		removed := c.recon.RemoveNow(id)
		c.mu.Unlock()
		if removed {
			c.log.Debug("Игрок %s покинул мир", id)
		}

	case protocol.EventBePushed:
		var push protocol.BePushedPayload
		if err := protocol.DecodePayload(frame, &push); err != nil {
			return
		}
		c.mu.Lock()
		c.player.ApplyPush(push.X, push.Z)
		c.mu.Unlock()
	}
}

// snapshotOfRemotes собирает текущее состояние чужих аватаров в форму
// снимка, чтобы точечное добавление шло через общий путь согласования.
// Вызывается под c.mu.
func (c *Client) snapshotOfRemotes() map[string]entity.Entity {
	out := make(map[string]entity.Entity, c.recon.Count())
	for id, re := range c.recon.Remotes() {
		out[id] = entity.Entity{
			ID: id, Name: re.Name, ModelType: re.ModelType, IsNPC: re.IsNPC,
			Ping: re.Ping, X: re.X, Z: re.Z, Rotation: re.Rotation, Action: re.Action,
		}
	}
	return out
}

func mergeEntity(snapshot map[string]entity.Entity, e entity.Entity) map[string]entity.Entity {
	snapshot[e.ID] = e
	return snapshot
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.disconnected:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.pingSentAt = time.Now()
			ping := c.lastPing
			c.mu.Unlock()

			c.writeMu.Lock()
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			c.writeMu.Unlock()

			if err := c.send(protocol.EventUpdatePing, ping); err != nil {
				return
			}
		}
	}
}

// advance продвигает локальную симуляцию на один кадр: свежий ввод
// встаёт в буфер задержки, действующий ввод двигает игрока.
func (c *Client) advance(in InputFrame) (*PushCommand, entity.InputUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inputs.Push(in)
	effective := c.inputs.Effective(c.controls.LatencyMs)
	push := c.player.Step(effective, c.recon.Remotes())
	return push, c.player.InputUpdate()
}

// Frame продвигает клиентский кадр и отправляет серверу свежее состояние
func (c *Client) Frame(in InputFrame) error {
	push, upd := c.advance(in)

	if push != nil {
		if err := c.send(protocol.EventPushAction, protocol.PushActionPayload{
			TargetID: push.TargetID,
			VectorX:  push.Vector.X,
			VectorZ:  push.Vector.Z,
		}); err != nil {
			return err
		}
	}
	return c.send(protocol.EventPlayerInput, upd)
}

// SetLatency меняет искусственную задержку собственного ввода
func (c *Client) SetLatency(ms int) {
	c.mu.Lock()
	c.controls.LatencyMs = ms
	c.mu.Unlock()
}

// SetShowRemote переключает видимость чужих аватаров
func (c *Client) SetShowRemote(show bool) {
	c.mu.Lock()
	c.controls.ShowRemote = show
	c.mu.Unlock()
}

// Player возвращает локального игрока
func (c *Client) Player() *LocalPlayer { return c.player }

// Remotes возвращает снимок чужих аватаров для рендера.
// При выключенном ShowRemote возвращается пустой срез, но внутреннее
// состояние продолжает обновляться.
func (c *Client) Remotes() []RemoteEntity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.controls.ShowRemote {
		return nil
	}
	out := make([]RemoteEntity, 0, c.recon.Count())
	for _, re := range c.recon.Remotes() {
		out = append(out, *re)
	}
	return out
}

// Ping возвращает последнюю оценку RTT в миллисекундах
func (c *Client) Ping() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

// Done закрывается при разрыве соединения
func (c *Client) Done() <-chan struct{} { return c.disconnected }

// Close завершает соединение
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.disconnected) })
	return c.conn.Close()
}
