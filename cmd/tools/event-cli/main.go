package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/avatar-sync/internal/eventbus"
)

// Утилита наблюдения за шиной событий сервера: хвост живых событий
// и сводка по типам. Работает только с NATS JetStream — in-memory
// шина снаружи процесса недоступна.
func main() {
	var (
		natsURL  = flag.String("nats", nats.DefaultURL, "адрес NATS сервера")
		command  = flag.String("cmd", "tail", "команда: tail, stats")
		subjects = flag.String("types", "", "фильтр типов событий через запятую (пусто — все)")
		window   = flag.Duration("window", 30*time.Second, "окно накопления для stats")
		verbose  = flag.Bool("v", false, "печатать полезную нагрузку событий")
	)
	flag.Parse()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("❌ Подключение к NATS не удалось: %v", err)
	}
	defer nc.Drain()

	wanted := parseStringList(*subjects)

	switch *command {
	case "tail":
		if err := tailEvents(nc, wanted, *verbose); err != nil {
			log.Fatalf("❌ Tail: %v", err)
		}
	case "stats":
		if err := showStats(nc, wanted, *window); err != nil {
			log.Fatalf("❌ Stats: %v", err)
		}
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, stats")
		os.Exit(1)
	}
}

// tailEvents печатает события по мере поступления, как tail -f
func tailEvents(nc *nats.Conn, wanted []string, verbose bool) error {
	fmt.Println("🎬 Хвост событий (Ctrl+C для выхода)")

	sub, err := nc.Subscribe("avatars.>", func(msg *nats.Msg) {
		env, ok := decodeEnvelope(msg.Data)
		if !ok || !matchType(env.EventType, wanted) {
			return
		}
		printEnvelope(env, verbose)
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

// showStats накапливает события в течение окна и печатает сводку по типам
func showStats(nc *nats.Conn, wanted []string, window time.Duration) error {
	fmt.Printf("📊 Накопление статистики за %s...\n", window)

	counts := make(map[string]int)
	countCh := make(chan string, 256)

	sub, err := nc.Subscribe("avatars.>", func(msg *nats.Msg) {
		if env, ok := decodeEnvelope(msg.Data); ok && matchType(env.EventType, wanted) {
			countCh <- env.EventType
		}
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	deadline := time.After(window)
	total := 0
loop:
	for {
		select {
		case t := <-countCh:
			counts[t]++
			total++
		case <-deadline:
			break loop
		}
	}

	fmt.Printf("Всего событий: %d\n", total)
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, counts[t])
	}
	return nil
}

func decodeEnvelope(data []byte) (*eventbus.Envelope, bool) {
	var env eventbus.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func printEnvelope(env *eventbus.Envelope, verbose bool) {
	fmt.Printf("[%s] %s [%s] prio=%d %s\n",
		env.Timestamp.Format("15:04:05"),
		env.Source,
		env.EventType,
		env.Priority,
		env.ID)
	if verbose && len(env.Payload) > 0 {
		fmt.Printf("  %s\n", string(env.Payload))
	}
}

func matchType(eventType string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == eventType {
			return true
		}
	}
	return false
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
