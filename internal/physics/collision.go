package physics

import (
	"github.com/annel0/avatar-sync/internal/vec"
)

// DefaultAvatarRadius — радиус коллайдера аватара в мировых единицах
const DefaultAvatarRadius = 0.4

// HeadOnDotThreshold — порог скалярного произведения направлений,
// ниже которого столкновение считается лобовым
const HeadOnDotThreshold = -0.5

// PushScale — доля заблокированной скорости, передаваемая в толчок
const PushScale = 0.8

// CircleCollider представляет простой круглый коллайдер на плоскости
type CircleCollider struct {
	Radius float64
}

// NewCircleCollider создаёт коллайдер с указанным радиусом
func NewCircleCollider(radius float64) *CircleCollider {
	return &CircleCollider{Radius: radius}
}

// CheckCircleCollision проверяет пересечение двух круглых коллайдеров
func CheckCircleCollision(pos1 vec.Vec2, c1 *CircleCollider, pos2 vec.Vec2, c2 *CircleCollider) bool {
	return pos1.DistanceTo(pos2) < c1.Radius+c2.Radius
}

// IsHeadOn определяет лобовое столкновение: обе стороны движутся
// навстречу друг другу. Неподвижная цель лобового не даёт — её можно толкать.
func IsHeadOn(myForward vec.Vec2, otherRotation float64, otherMoving bool) bool {
	if !otherMoving {
		return false
	}
	otherForward := vec.FromHeading(otherRotation)
	return myForward.Dot(otherForward) < HeadOnDotThreshold
}

// PushVector возвращает вектор толчка для заблокированной скорости
func PushVector(blockedVelocity vec.Vec2) vec.Vec2 {
	return blockedVelocity.Mul(PushScale)
}
