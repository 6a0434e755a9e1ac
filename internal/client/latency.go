// Package client реализует клиентскую сторону синхронизации аватаров:
// буфер искусственной задержки ввода, согласование списка сущностей и
// локальное управление игроком.
package client

import (
	"time"
)

// ControlState — клиентские настройки, которые игрок меняет на лету
type ControlState struct {
	// LatencyMs — искусственная задержка собственного ввода: состояние
	// органов управления попадает в симуляцию лишь спустя этот интервал.
	// Рендер и чужие аватары задержка не затрагивает.
	LatencyMs int

	// ShowRemote управляет видимостью чужих аватаров без отписки от
	// снимков: согласование продолжается, скрывается только рендер.
	ShowRemote bool
}

type bufferedInput struct {
	at time.Time
	in InputFrame
}

// LatencyBuffer задерживает локальный ввод перед симуляцией.
// Очередь строго FIFO: кадры ввода входят в порядке съёма с органов
// управления и становятся действующими в том же порядке.
type LatencyBuffer struct {
	queue     []bufferedInput
	effective InputFrame
	now       func() time.Time
}

// NewLatencyBuffer создаёт пустой буфер
func NewLatencyBuffer() *LatencyBuffer {
	return &LatencyBuffer{now: time.Now}
}

// Push ставит свежий кадр ввода в хвост очереди с текущей меткой времени
func (lb *LatencyBuffer) Push(in InputFrame) {
	lb.queue = append(lb.queue, bufferedInput{at: lb.now(), in: in})
}

// Effective возвращает кадр ввода, действующий при задержке delayMs.
// При нулевой задержке последний кадр отдаётся сразу, очередь очищается.
// Если ни один кадр ещё не созрел, продолжает действовать прошлый кадр;
// до первого созревшего кадра это нулевой ввод (все клавиши отпущены).
func (lb *LatencyBuffer) Effective(delayMs int) InputFrame {
	if delayMs <= 0 {
		if n := len(lb.queue); n > 0 {
			lb.effective = lb.queue[n-1].in
			lb.queue = lb.queue[:0]
		}
		return lb.effective
	}

	cutoff := lb.now().Add(-time.Duration(delayMs) * time.Millisecond)
	drained := 0
	for drained < len(lb.queue) && !lb.queue[drained].at.After(cutoff) {
		lb.effective = lb.queue[drained].in
		drained++
	}
	if drained > 0 {
		lb.queue = lb.queue[drained:]
	}
	return lb.effective
}

// Pending возвращает число кадров ввода, ожидающих в очереди
func (lb *LatencyBuffer) Pending() int { return len(lb.queue) }
