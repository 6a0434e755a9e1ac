package network

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/annel0/avatar-sync/internal/protocol"
	"github.com/annel0/avatar-sync/internal/world/entity"
	"github.com/annel0/avatar-sync/internal/world/npc"
)

// testServer поднимает игровой сервер на httptest и возвращает ws-адрес
func testServer(t *testing.T, tick time.Duration) (*GameServer, string) {
	t.Helper()

	store := entity.NewStore(28, 30)
	engine := npc.NewEngine(store)
	gs := NewGameServer(store, engine, Options{Tick: tick})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	gs.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		gs.Stop()
		srv.Close()
	})

	gs.Start()
	return gs, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialAndJoin(t *testing.T, url, name, model string) (*websocket.Conn, protocol.InitPayload) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Не удалось подключиться к %s", url)
	t.Cleanup(func() { conn.Close() })

	sendFrame(t, conn, protocol.EventJoin, protocol.JoinRequest{Name: name, ModelType: model})

	frame := awaitEvent(t, conn, protocol.EventInit, 3*time.Second)
	var init protocol.InitPayload
	require.NoError(t, protocol.DecodePayload(frame, &init), "Не разобрался init")
	return conn, init
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	raw, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// awaitEvent читает кадры, пропуская нерелевантные (рассылки тикают постоянно)
func awaitEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) protocol.Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "Чтение в ожидании %s", event)
		frame, err := protocol.Decode(raw)
		if err != nil {
			continue
		}
		if frame.Event == event {
			return frame
		}
	}
	t.Fatalf("Событие %s не пришло за %s", event, timeout)
	return protocol.Frame{}
}

// TestJoinHandshake тестирует вход и стартовый снимок
func TestJoinHandshake(t *testing.T) {
	gs, url := testServer(t, 20*time.Millisecond)

	_, init := dialAndJoin(t, url, "Ash", "fox")

	require.NotEmpty(t, init.ID, "init без id")
	self, ok := init.Players[init.ID]
	require.True(t, ok, "Снимок init не содержит самого игрока")
	require.Equal(t, "Ash", self.Name)
	require.Equal(t, entity.ModelFox, self.ModelType)

	players, _ := gs.store.Counts()
	require.Equal(t, 1, players)
}

// TestNewPlayerAnnouncement проверяет, что о втором игроке узнают сразу
func TestNewPlayerAnnouncement(t *testing.T) {
	_, url := testServer(t, time.Hour) // тикер фактически выключен

	conn1, init1 := dialAndJoin(t, url, "Ash", "fox")
	_, init2 := dialAndJoin(t, url, "Misty", "cesium")

	// Второй игрок видит первого в своём init
	require.Contains(t, init2.Players, init1.ID)

	// Первый получает ровно одно newPlayer со вторым игроком
	frame := awaitEvent(t, conn1, protocol.EventNewPlayer, 3*time.Second)
	var announced entity.Entity
	require.NoError(t, protocol.DecodePayload(frame, &announced))
	require.Equal(t, init2.ID, announced.ID)
	require.Equal(t, "Misty", announced.Name)
}

// TestPlayerInputReachesBroadcast тестирует путь input → снимок
func TestPlayerInputReachesBroadcast(t *testing.T) {
	_, url := testServer(t, 20*time.Millisecond)

	conn, init := dialAndJoin(t, url, "Ash", "fox")

	x, z, action := 7.5, -3.25, entity.ActionRun
	sendFrame(t, conn, protocol.EventPlayerInput, entity.InputUpdate{X: &x, Z: &z, Action: &action})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := awaitEvent(t, conn, protocol.EventPlayerListUpdate, 3*time.Second)
		var snapshot map[string]entity.Entity
		require.NoError(t, protocol.DecodePayload(frame, &snapshot))
		if me, ok := snapshot[init.ID]; ok && me.X == 7.5 {
			require.Equal(t, -3.25, me.Z)
			require.Equal(t, entity.ActionRun, me.Action)
			return
		}
	}
	t.Fatal("Обновление позиции так и не появилось в рассылке")
}

// TestPushForwardedToVictim тестирует пересылку bePushed жертве
func TestPushForwardedToVictim(t *testing.T) {
	_, url := testServer(t, time.Hour)

	conn1, _ := dialAndJoin(t, url, "Pusher", "fox")
	conn2, init2 := dialAndJoin(t, url, "Victim", "fox")

	sendFrame(t, conn1, protocol.EventPushAction, protocol.PushActionPayload{
		TargetID: init2.ID,
		VectorX:  0.4,
		VectorZ:  -0.2,
	})

	frame := awaitEvent(t, conn2, protocol.EventBePushed, 3*time.Second)
	var push protocol.BePushedPayload
	require.NoError(t, protocol.DecodePayload(frame, &push))
	require.Equal(t, 0.4, push.X)
	require.Equal(t, -0.2, push.Z)
}

// TestPushOnNPCMovesIt тестирует серверное применение толчка к NPC
func TestPushOnNPCMovesIt(t *testing.T) {
	gs, url := testServer(t, time.Hour)

	npcEnt := gs.engine.Spawn(entity.ModelFox)
	conn, _ := dialAndJoin(t, url, "Ash", "fox")

	sendFrame(t, conn, protocol.EventPushAction, protocol.PushActionPayload{
		TargetID: npcEnt.ID,
		VectorX:  1000, // заведомо за границей
	})

	require.Eventually(t, func() bool {
		got, ok := gs.store.Get(npcEnt.ID)
		return ok && got.X == 28
	}, 3*time.Second, 10*time.Millisecond, "NPC не сдвинулся и не зажался в ±28")
}

// TestDisconnectBroadcast тестирует уведомление об уходе игрока
func TestDisconnectBroadcast(t *testing.T) {
	gs, url := testServer(t, time.Hour)

	conn1, _ := dialAndJoin(t, url, "Stayer", "fox")
	conn2, init2 := dialAndJoin(t, url, "Leaver", "fox")

	// conn1 сперва получит newPlayer о втором — пропустим его в awaitEvent
	require.NoError(t, conn2.Close())

	frame := awaitEvent(t, conn1, protocol.EventPlayerDisconnected, 3*time.Second)
	var goneID string
	require.NoError(t, protocol.DecodePayload(frame, &goneID))
	require.Equal(t, init2.ID, goneID)

	require.Eventually(t, func() bool {
		players, _ := gs.store.Counts()
		return players == 1
	}, 3*time.Second, 10*time.Millisecond, "Сущность ушедшего не удалена")
}

// TestUpdatePing тестирует сохранение RTT в сущности
func TestUpdatePing(t *testing.T) {
	gs, url := testServer(t, time.Hour)

	conn, init := dialAndJoin(t, url, "Ash", "fox")
	sendFrame(t, conn, protocol.EventUpdatePing, 42)

	require.Eventually(t, func() bool {
		got, ok := gs.store.Get(init.ID)
		return ok && got.Ping == 42
	}, 3*time.Second, 10*time.Millisecond, "Ping не сохранился")
}
