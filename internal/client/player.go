package client

import (
	"github.com/annel0/avatar-sync/internal/physics"
	"github.com/annel0/avatar-sync/internal/vec"
	"github.com/annel0/avatar-sync/internal/world/entity"
)

// Скорости локального игрока за кадр. Совпадают со скоростями NPC:
// игрок и лиса двигаются в одном масштабе.
const (
	playerRotateStep = 0.05
	playerWalkSpeed  = 0.05
	playerRunSpeed   = 0.15
	// Назад игрок пятится медленнее, чем идёт вперёд
	playerBackwardFactor = 0.6

	playerMapLimit = 30.0
)

// InputFrame — состояние органов управления на один кадр
type InputFrame struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Run      bool
}

// PushCommand — просьба к серверу толкнуть цель
type PushCommand struct {
	TargetID string
	Vector   vec.Vec2
}

// LocalPlayer — авторитетный локальный аватар.
// Его позицию решает только этот клиент; сервер лишь ретранслирует её.
type LocalPlayer struct {
	ID       string
	Pos      vec.Vec2
	Rotation float64
	Action   string

	collider *physics.CircleCollider
	limit    float64
}

// NewLocalPlayer создаёт локального игрока по init-данным сервера
func NewLocalPlayer(id string, x, z, rotation float64) *LocalPlayer {
	return &LocalPlayer{
		ID:       id,
		Pos:      vec.Vec2{X: x, Z: z},
		Rotation: rotation,
		Action:   entity.ActionSurvey,
		collider: physics.NewCircleCollider(physics.DefaultAvatarRadius),
		limit:    playerMapLimit,
	}
}

// Step продвигает игрока на один кадр. Столкновение с чужим аватаром
// блокирует движение; если помеха не лобовая, возвращается команда
// толчка с заблокированной скоростью.
func (lp *LocalPlayer) Step(in InputFrame, remotes map[string]*RemoteEntity) *PushCommand {
	if in.Left {
		lp.Rotation += playerRotateStep
	}
	if in.Right {
		lp.Rotation -= playerRotateStep
	}

	speed := 0.0
	switch {
	case in.Forward && in.Run:
		speed = playerRunSpeed
		lp.Action = entity.ActionRun
	case in.Forward:
		speed = playerWalkSpeed
		lp.Action = entity.ActionWalk
	case in.Backward:
		speed = -playerWalkSpeed * playerBackwardFactor
		lp.Action = entity.ActionWalk
	default:
		lp.Action = entity.ActionSurvey
		return nil
	}

	velocity := vec.FromHeading(lp.Rotation).Mul(speed)
	next := lp.Pos.Add(velocity).Clamp(lp.limit)

	blocker := lp.findBlocker(next, remotes)
	if blocker == nil {
		lp.Pos = next
		return nil
	}

	// Движение заблокировано. Лобовое столкновение с идущим навстречу —
	// глухая стена; во всех остальных случаях помеху толкаем.
	otherMoving := blocker.Action != entity.ActionSurvey
	if physics.IsHeadOn(vec.FromHeading(lp.Rotation), blocker.Rotation, otherMoving) {
		return nil
	}
	return &PushCommand{
		TargetID: blocker.ID,
		Vector:   physics.PushVector(velocity),
	}
}

func (lp *LocalPlayer) findBlocker(next vec.Vec2, remotes map[string]*RemoteEntity) *RemoteEntity {
	for _, re := range remotes {
		otherPos := vec.Vec2{X: re.X, Z: re.Z}
		if physics.CheckCircleCollision(next, lp.collider, otherPos, lp.collider) {
			return re
		}
	}
	return nil
}

// ApplyPush применяет bePushed-директиву сервера к локальной позиции.
// Каждая ось зажимается в границах карты независимо.
func (lp *LocalPlayer) ApplyPush(dx, dz float64) {
	lp.Pos = lp.Pos.Add(vec.Vec2{X: dx, Z: dz}).Clamp(lp.limit)
}

// InputUpdate собирает текущее состояние игрока для отправки серверу
func (lp *LocalPlayer) InputUpdate() entity.InputUpdate {
	x, z, rot, action := lp.Pos.X, lp.Pos.Z, lp.Rotation, lp.Action
	return entity.InputUpdate{X: &x, Z: &z, Rotation: &rot, Action: &action}
}
