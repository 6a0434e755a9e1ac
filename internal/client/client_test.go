package client

import (
	"math"
	"testing"
	"time"

	"github.com/annel0/avatar-sync/internal/logging"
	"github.com/annel0/avatar-sync/internal/protocol"
	"github.com/annel0/avatar-sync/internal/world/entity"
)

// newSimClient собирает клиент без сетевого соединения: буфер ввода,
// согласователь и локальный игрок достаточны для проверки симуляции
func newSimClient(latencyMs int, now func() time.Time) *Client {
	lb := NewLatencyBuffer()
	if now != nil {
		lb.now = now
	}
	return &Client{
		log:      logging.GetClientLogger(),
		player:   NewLocalPlayer("self", 0, 0, 0),
		inputs:   lb,
		recon:    NewReconciler("self"),
		controls: ControlState{LatencyMs: latencyMs, ShowRemote: true},
	}
}

func frameOf(t *testing.T, event string, payload interface{}) protocol.Frame {
	t.Helper()
	raw, err := protocol.Encode(event, payload)
	if err != nil {
		t.Fatalf("Ошибка кодирования %s: %v", event, err)
	}
	frame, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Ошибка разбора %s: %v", event, err)
	}
	return frame
}

// TestAdvanceDefersInputByDelay проверяет ключевое свойство буфера ввода:
// нажатие в момент T двигает игрока не раньше T+D
func TestAdvanceDefersInputByDelay(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newSimClient(100, func() time.Time { return now })

	c.advance(InputFrame{Forward: true})
	if c.player.Pos.Z != 0 {
		t.Errorf("Ввод подействовал в тот же кадр при задержке 100мс: Z=%f", c.player.Pos.Z)
	}

	now = now.Add(50 * time.Millisecond)
	c.advance(InputFrame{Forward: true})
	if c.player.Pos.Z != 0 {
		t.Errorf("Ввод подействовал раньше T+D: Z=%f", c.player.Pos.Z)
	}

	now = now.Add(50 * time.Millisecond)
	c.advance(InputFrame{Forward: true})
	if math.Abs(c.player.Pos.Z-0.05) > 1e-9 {
		t.Errorf("Спустя D ввод обязан двигать игрока: Z=%f", c.player.Pos.Z)
	}
}

// TestAdvanceZeroDelayIsImmediate тестирует быстрый путь без задержки
func TestAdvanceZeroDelayIsImmediate(t *testing.T) {
	c := newSimClient(0, nil)

	c.advance(InputFrame{Forward: true})
	if math.Abs(c.player.Pos.Z-0.05) > 1e-9 {
		t.Errorf("Без задержки ввод действует сразу: Z=%f", c.player.Pos.Z)
	}
}

// TestAdvanceReleaseAlsoDeferred проверяет, что отпускание клавиши
// задерживается так же, как нажатие
func TestAdvanceReleaseAlsoDeferred(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newSimClient(100, func() time.Time { return now })

	c.advance(InputFrame{Forward: true})
	now = now.Add(100 * time.Millisecond)
	c.advance(InputFrame{}) // отпустили в T+100
	zAfterPress := c.player.Pos.Z
	if math.Abs(zAfterPress-0.05) > 1e-9 {
		t.Fatalf("Созревшее нажатие не подействовало: Z=%f", zAfterPress)
	}

	// Отпускание ещё не созрело: игрок продолжает идти
	now = now.Add(50 * time.Millisecond)
	c.advance(InputFrame{})
	if c.player.Pos.Z <= zAfterPress {
		t.Errorf("Отпускание подействовало раньше T+D: Z=%f", c.player.Pos.Z)
	}

	// Спустя D отпускание действует, движение останавливается
	now = now.Add(50 * time.Millisecond)
	c.advance(InputFrame{})
	stopped := c.player.Pos.Z
	c.advance(InputFrame{})
	if c.player.Pos.Z != stopped {
		t.Errorf("Игрок движется после созревшего отпускания: %f -> %f", stopped, c.player.Pos.Z)
	}
}

// TestSnapshotsApplyOnArrival проверяет, что снимки мира не задерживаются:
// чужой аватар появляется сразу даже при большой задержке ввода
func TestSnapshotsApplyOnArrival(t *testing.T) {
	c := newSimClient(5000, nil)

	c.handle(frameOf(t, protocol.EventPlayerListUpdate, map[string]entity.Entity{
		"self":  {ID: "self"},
		"other": {ID: "other", Name: "Misty", X: 7},
	}))

	re, ok := c.recon.Get("other")
	if !ok {
		t.Fatal("Чужой аватар не появился сразу по приходу снимка")
	}
	if re.X != 7 {
		t.Errorf("Состояние аватара не применилось: X=%f", re.X)
	}
}

// TestDisconnectedAvatarStaysGone проверяет немедленное и окончательное
// уничтожение аватара при playerDisconnected
func TestDisconnectedAvatarStaysGone(t *testing.T) {
	c := newSimClient(200, nil)

	c.handle(frameOf(t, protocol.EventPlayerListUpdate, map[string]entity.Entity{
		"self":  {ID: "self"},
		"ghost": {ID: "ghost", Name: "Ghost"},
	}))
	if c.recon.Count() != 1 {
		t.Fatalf("Аватар не создался: %d", c.recon.Count())
	}

	c.handle(frameOf(t, protocol.EventPlayerDisconnected, "ghost"))
	if c.recon.Count() != 0 {
		t.Fatal("Аватар не уничтожен немедленно")
	}

	// Последующие кадры симуляции не должны воскрешать ушедшего
	for i := 0; i < 5; i++ {
		c.advance(InputFrame{})
	}
	if c.recon.Count() != 0 {
		t.Errorf("Ушедший игрок воскрес после кадров симуляции: %d", c.recon.Count())
	}
}
