package client

import (
	"math"
	"testing"

	"github.com/annel0/avatar-sync/internal/world/entity"
)

// TestLocalPlayerMovement тестирует движение и повороты локального игрока
func TestLocalPlayerMovement(t *testing.T) {
	t.Run("Idle", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		lp.Step(InputFrame{}, nil)
		if lp.Pos.X != 0 || lp.Pos.Z != 0 {
			t.Errorf("Без ввода игрок сдвинулся: %+v", lp.Pos)
		}
		if lp.Action != entity.ActionSurvey {
			t.Errorf("Без ввода ожидается Survey, получено %q", lp.Action)
		}
	})

	t.Run("Walk Forward", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		lp.Step(InputFrame{Forward: true}, nil)
		// Поворот 0 — движение вдоль +Z
		if math.Abs(lp.Pos.Z-0.05) > 1e-9 || math.Abs(lp.Pos.X) > 1e-9 {
			t.Errorf("Шаг ходьбы: %+v, ожидалось (0, 0.05)", lp.Pos)
		}
		if lp.Action != entity.ActionWalk {
			t.Errorf("Ожидалось Walk, получено %q", lp.Action)
		}
	})

	t.Run("Run Forward", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		lp.Step(InputFrame{Forward: true, Run: true}, nil)
		if math.Abs(lp.Pos.Z-0.15) > 1e-9 {
			t.Errorf("Шаг бега: %+v, ожидалось Z=0.15", lp.Pos)
		}
		if lp.Action != entity.ActionRun {
			t.Errorf("Ожидалось Run, получено %q", lp.Action)
		}
	})

	t.Run("Backward Is Slower", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		lp.Step(InputFrame{Backward: true}, nil)
		if math.Abs(lp.Pos.Z+0.03) > 1e-9 {
			t.Errorf("Шаг назад: %+v, ожидалось Z=-0.03", lp.Pos)
		}
	})

	t.Run("Rotation Step", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		lp.Step(InputFrame{Left: true}, nil)
		if math.Abs(lp.Rotation-0.05) > 1e-9 {
			t.Errorf("Поворот влево: %f, ожидалось 0.05", lp.Rotation)
		}
		lp.Step(InputFrame{Right: true}, nil)
		lp.Step(InputFrame{Right: true}, nil)
		if math.Abs(lp.Rotation+0.05) > 1e-9 {
			t.Errorf("Поворот вправо: %f, ожидалось -0.05", lp.Rotation)
		}
	})

	t.Run("Clamped To Map Limit", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 29.99, 0)
		for i := 0; i < 10; i++ {
			lp.Step(InputFrame{Forward: true, Run: true}, nil)
		}
		if lp.Pos.Z > 30 {
			t.Errorf("Игрок вышел за ±30: Z=%f", lp.Pos.Z)
		}
	})
}

// TestLocalPlayerCollision тестирует блокировку движения и генерацию толчков
func TestLocalPlayerCollision(t *testing.T) {
	blockerAhead := func(action string, rotation float64) map[string]*RemoteEntity {
		// Помеха прямо по курсу, в пределах суммы радиусов
		return map[string]*RemoteEntity{
			"other": {ID: "other", X: 0, Z: 0.6, Rotation: rotation, Action: action},
		}
	}

	t.Run("Blocked Movement Emits Push", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		push := lp.Step(InputFrame{Forward: true}, blockerAhead(entity.ActionSurvey, 0))

		if lp.Pos.Z != 0 {
			t.Errorf("Заблокированный игрок сдвинулся: %+v", lp.Pos)
		}
		if push == nil {
			t.Fatal("Ожидалась команда толчка")
		}
		if push.TargetID != "other" {
			t.Errorf("Цель толчка: %q", push.TargetID)
		}
		// Толчок — заблокированная скорость, ослабленная до 0.8
		if math.Abs(push.Vector.Z-0.05*0.8) > 1e-9 {
			t.Errorf("Вектор толчка: %+v", push.Vector)
		}
	})

	t.Run("Head-On Blocks Without Push", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		// Помеха идёт строго навстречу (поворот π) и движется
		push := lp.Step(InputFrame{Forward: true}, blockerAhead(entity.ActionWalk, math.Pi))

		if lp.Pos.Z != 0 {
			t.Errorf("Лобовое столкновение не заблокировало движение: %+v", lp.Pos)
		}
		if push != nil {
			t.Error("Лобовое столкновение не должно порождать толчок")
		}
	})

	t.Run("Standing Opponent Is Pushable Even Facing Us", func(t *testing.T) {
		lp := NewLocalPlayer("p1", 0, 0, 0)
		push := lp.Step(InputFrame{Forward: true}, blockerAhead(entity.ActionSurvey, math.Pi))
		if push == nil {
			t.Error("Стоящая помеха толкается независимо от её поворота")
		}
	})
}

// TestLocalPlayerApplyPush тестирует применение bePushed
func TestLocalPlayerApplyPush(t *testing.T) {
	lp := NewLocalPlayer("p1", 29, -29, 0)
	lp.ApplyPush(5, -5)
	if lp.Pos.X != 30 || lp.Pos.Z != -30 {
		t.Errorf("Толчок должен зажиматься по осям в ±30: %+v", lp.Pos)
	}

	lp2 := NewLocalPlayer("p2", 0, 0, 0)
	lp2.ApplyPush(0.5, -0.25)
	if lp2.Pos.X != 0.5 || lp2.Pos.Z != -0.25 {
		t.Errorf("Толчок применился неверно: %+v", lp2.Pos)
	}
}

// TestLocalPlayerInputUpdate проверяет сборку полного обновления
func TestLocalPlayerInputUpdate(t *testing.T) {
	lp := NewLocalPlayer("p1", 1, 2, 0.3)
	lp.Action = entity.ActionRun

	upd := lp.InputUpdate()
	if upd.X == nil || *upd.X != 1 {
		t.Error("X не заполнен")
	}
	if upd.Z == nil || *upd.Z != 2 {
		t.Error("Z не заполнен")
	}
	if upd.Rotation == nil || *upd.Rotation != 0.3 {
		t.Error("Rotation не заполнен")
	}
	if upd.Action == nil || *upd.Action != entity.ActionRun {
		t.Error("Action не заполнен")
	}
	if upd.Ping != nil {
		t.Error("Ping не отправляется через playerInput")
	}
}
