package replication

import (
	"bytes"
	"testing"
	"time"

	"github.com/annel0/avatar-sync/internal/eventbus"
)

// TestPassthroughCompressor тестирует кадрирование без сжатия
func TestPassthroughCompressor(t *testing.T) {
	c := NewPassthroughCompressor()

	changes := []Change{
		{Data: []byte("change-one"), Priority: 5},
		{Data: []byte("change-two"), Priority: 3},
		{Data: []byte{}, Priority: 1},
	}

	packed, err := c.Compress(changes)
	if err != nil {
		t.Fatalf("Ошибка упаковки: %v", err)
	}

	unpacked, err := c.Decompress(packed)
	if err != nil {
		t.Fatalf("Ошибка распаковки: %v", err)
	}

	if len(unpacked) != len(changes) {
		t.Fatalf("Ожидалось %d изменений, получено %d", len(changes), len(unpacked))
	}
	for i := range changes {
		if !bytes.Equal(unpacked[i].Data, changes[i].Data) {
			t.Errorf("Изменение %d искажено: %q != %q", i, unpacked[i].Data, changes[i].Data)
		}
	}
}

// TestZstdCompressorRoundTrip тестирует сжатие и восстановление батча
func TestZstdCompressorRoundTrip(t *testing.T) {
	c, err := NewZstdCompressor()
	if err != nil {
		t.Fatalf("zstd недоступен: %v", err)
	}

	// Повторяющиеся данные должны хорошо сжиматься
	big := bytes.Repeat([]byte(`{"id":"npc_fox_0","x":1.5,"z":-2.5}`), 100)
	changes := []Change{
		{Data: big, Priority: 5},
		{Data: []byte("small"), Priority: 5},
	}

	packed, err := c.Compress(changes)
	if err != nil {
		t.Fatalf("Ошибка сжатия: %v", err)
	}
	if len(packed) >= len(big) {
		t.Errorf("Сжатие не уменьшило батч: %d >= %d", len(packed), len(big))
	}

	unpacked, err := c.Decompress(packed)
	if err != nil {
		t.Fatalf("Ошибка распаковки: %v", err)
	}
	if len(unpacked) != 2 || !bytes.Equal(unpacked[0].Data, big) || !bytes.Equal(unpacked[1].Data, []byte("small")) {
		t.Error("Батч не восстановился после сжатия")
	}
}

// TestBatchManagerFlushesToBus тестирует публикацию батча в шину
func TestBatchManagerFlushesToBus(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	bm := NewBatchManager(bus, "test-server", 10, 50*time.Millisecond, NewPassthroughCompressor())
	defer bm.Stop()

	for i := 0; i < 3; i++ {
		bm.AddChange(Change{
			Data:       []byte("change"),
			Priority:   5,
			Timestamp:  time.Now().UTC(),
			ChangeType: eventbus.EventEntityPushed,
		})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.Metrics().Published > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Батч так и не опубликован в шину")
}

// TestBatchManagerOverflowPrefersHighPriority тестирует вытеснение при переполнении
func TestBatchManagerOverflowPrefersHighPriority(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	// flush раз в час: буфер заполняется без сброса
	bm := NewBatchManager(bus, "test-server", 2, time.Hour, NewPassthroughCompressor())
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("low"), Priority: 1})
	bm.AddChange(Change{Data: []byte("mid"), Priority: 5})
	// Переполнение: высокий приоритет должен вытеснить низкий
	bm.AddChange(Change{Data: []byte("high"), Priority: 9})

	if n := bm.Len(); n != 2 {
		t.Errorf("Буфер должен остаться на ёмкости 2, получено %d", n)
	}
}
