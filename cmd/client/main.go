package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/avatar-sync/internal/client"
	"github.com/annel0/avatar-sync/internal/logging"
)

// Безголовый бот-клиент: подключается к серверу, бродит по миру и
// печатает сводку. Полезен для нагрузочных прогонов и отладки протокола.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:3000/ws", "адрес websocket сервера")
		name    = flag.String("name", "", "имя игрока (пусто — сервер выдаст дефолтное)")
		model   = flag.String("model", "fox", "модель аватара: fox или cesium")
		latency = flag.Int("latency", 0, "искусственная задержка собственного ввода, мс")
		frameMs = flag.Int("frame", 50, "период клиентского кадра, мс")
	)
	flag.Parse()

	if err := logging.InitDefaultLogger("client"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, *url, *name, *model)
	cancel()
	if err != nil {
		logging.Error("❌ Подключение не удалось: %v", err)
		log.Fatalf("❌ Подключение не удалось: %v", err)
	}
	defer c.Close()

	c.SetLatency(*latency)
	logging.Info("🤖 Бот в мире, задержка ввода %dмс", *latency)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	frameTicker := time.NewTicker(time.Duration(*frameMs) * time.Millisecond)
	defer frameTicker.Stop()
	reportTicker := time.NewTicker(5 * time.Second)
	defer reportTicker.Stop()

	in := client.InputFrame{Forward: true}
	for {
		select {
		case <-sigCh:
			logging.Info("👋 Бот завершает работу")
			return
		case <-c.Done():
			logging.Warn("Сервер разорвал соединение")
			return
		case <-reportTicker.C:
			p := c.Player()
			logging.Info("📍 Позиция (%.1f, %.1f), видим %d аватаров, ping=%dмс",
				p.Pos.X, p.Pos.Z, len(c.Remotes()), c.Ping())
		case <-frameTicker.C:
			// Блуждание: иногда меняем поворот и темп
			if rand.Float64() < 0.05 {
				in.Left = rand.Float64() < 0.5
				in.Right = !in.Left && rand.Float64() < 0.5
				in.Run = rand.Float64() < 0.3
			}
			if err := c.Frame(in); err != nil {
				logging.Warn("Кадр не отправлен: %v", err)
				return
			}
		}
	}
}
