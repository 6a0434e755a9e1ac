package client

import (
	"testing"
	"time"
)

// TestLatencyBufferZeroDelay тестирует быстрый путь без задержки
func TestLatencyBufferZeroDelay(t *testing.T) {
	lb := NewLatencyBuffer()

	if got := lb.Effective(0); got != (InputFrame{}) {
		t.Errorf("Пустой буфер должен давать нулевой ввод, получено %+v", got)
	}

	lb.Push(InputFrame{Forward: true})
	lb.Push(InputFrame{Forward: true, Run: true})
	lb.Push(InputFrame{Backward: true})

	got := lb.Effective(0)
	if !got.Backward || got.Forward {
		t.Errorf("Без задержки действует последний кадр, получено %+v", got)
	}
	if lb.Pending() != 0 {
		t.Errorf("Очередь должна опустеть, осталось %d", lb.Pending())
	}

	// Действующий кадр сохраняется, пока не придёт новый
	if got := lb.Effective(0); !got.Backward {
		t.Errorf("Действующий кадр потерян: %+v", got)
	}
}

// TestLatencyBufferDelaysInput тестирует выдержку ввода на заданный интервал:
// смена клавиш в момент T становится действующей не раньше T+D
func TestLatencyBufferDelaysInput(t *testing.T) {
	now := time.Unix(1000, 0)
	lb := NewLatencyBuffer()
	lb.now = func() time.Time { return now }

	lb.Push(InputFrame{Forward: true}) // нажали вперёд в T

	t.Run("Not Ripe Before T+D", func(t *testing.T) {
		now = now.Add(50 * time.Millisecond)
		if got := lb.Effective(100); got.Forward {
			t.Errorf("Ввод стал действующим раньше T+D: %+v", got)
		}
		if lb.Pending() != 1 {
			t.Errorf("Кадр не должен был дренироваться: %d", lb.Pending())
		}
	})

	t.Run("Ripe At T+D", func(t *testing.T) {
		now = now.Add(50 * time.Millisecond)
		if got := lb.Effective(100); !got.Forward {
			t.Errorf("Спустя D ввод обязан действовать: %+v", got)
		}
		if lb.Pending() != 0 {
			t.Errorf("Созревший кадр должен покинуть очередь: %d", lb.Pending())
		}
	})

	t.Run("Retains Previous When Queue Idle", func(t *testing.T) {
		now = now.Add(time.Second)
		if got := lb.Effective(100); !got.Forward {
			t.Errorf("Прошлый действующий кадр потерян: %+v", got)
		}
	})
}

// TestLatencyBufferMultipleRipe проверяет, что из пачки созревших
// кадров действующим становится последний
func TestLatencyBufferMultipleRipe(t *testing.T) {
	now := time.Unix(1000, 0)
	lb := NewLatencyBuffer()
	lb.now = func() time.Time { return now }

	lb.Push(InputFrame{Forward: true}) // t=0
	now = now.Add(50 * time.Millisecond)
	lb.Push(InputFrame{Left: true}) // t=50
	now = now.Add(50 * time.Millisecond)
	lb.Push(InputFrame{Backward: true}) // t=100

	// now=100, задержка 60 → созрел только кадр t=0
	if got := lb.Effective(60); !got.Forward || got.Left {
		t.Errorf("Ожидался кадр t=0, получено %+v", got)
	}
	if lb.Pending() != 2 {
		t.Errorf("В очереди должно остаться 2, осталось %d", lb.Pending())
	}

	// Порог позади всех кадров: действующим становится последний
	now = now.Add(200 * time.Millisecond)
	if got := lb.Effective(60); !got.Backward {
		t.Errorf("Ожидался последний созревший кадр, получено %+v", got)
	}
	if lb.Pending() != 0 {
		t.Errorf("Очередь должна опустеть: %d", lb.Pending())
	}
}

// TestLatencyBufferFIFO проверяет строгий порядок созревания
func TestLatencyBufferFIFO(t *testing.T) {
	now := time.Unix(1000, 0)
	lb := NewLatencyBuffer()
	lb.now = func() time.Time { return now }

	frames := []InputFrame{
		{Forward: true},
		{Forward: true, Run: true},
		{Left: true},
		{Backward: true},
	}
	for _, f := range frames {
		lb.Push(f)
		now = now.Add(50 * time.Millisecond)
	}

	// Сдвигаем часы так, чтобы кадры созревали по одному
	seen := 0
	prev := InputFrame{}
	for step := 0; step < len(frames); step++ {
		got := lb.Effective(170)
		if got != prev {
			if got != frames[seen] {
				t.Fatalf("Порядок нарушен: шаг %d дал %+v, ожидалось %+v", seen, got, frames[seen])
			}
			seen++
			prev = got
		}
		now = now.Add(50 * time.Millisecond)
	}
	if seen == 0 {
		t.Fatal("Ни один кадр не созрел")
	}
}
