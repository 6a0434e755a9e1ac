package vec

import "math"

// Vec2 представляет точку или вектор на горизонтальной плоскости арены.
// Ось Y (высота) в синхронизации не участвует, поэтому храним только X и Z.
type Vec2 struct {
	X, Z float64
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec2) Mul(scalar float64) Vec2 {
	return Vec2{X: v.X * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// Normalized возвращает нормализованный вектор
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Z: v.Z / length}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := v.X - other.X
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Dot возвращает скалярное произведение
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Z*other.Z
}

// FromHeading возвращает единичный вектор направления по углу поворота.
// Нулевой угол смотрит вдоль +Z, как в клиентском рендере.
func FromHeading(rotation float64) Vec2 {
	return Vec2{X: math.Sin(rotation), Z: math.Cos(rotation)}
}

// HeadingTo возвращает угол поворота от точки v к точке other
func (v Vec2) HeadingTo(other Vec2) float64 {
	return math.Atan2(other.X-v.X, other.Z-v.Z)
}

// Clamp ограничивает обе координаты квадратом [-limit, limit]
func (v Vec2) Clamp(limit float64) Vec2 {
	return Vec2{
		X: math.Max(-limit, math.Min(limit, v.X)),
		Z: math.Max(-limit, math.Min(limit, v.Z)),
	}
}

// Inside сообщает, лежит ли точка строго внутри квадрата [-limit, limit]
func (v Vec2) Inside(limit float64) bool {
	return v.X > -limit && v.X < limit && v.Z > -limit && v.Z < limit
}
