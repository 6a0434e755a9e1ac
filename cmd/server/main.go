package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/avatar-sync/internal/api"
	"github.com/annel0/avatar-sync/internal/config"
	"github.com/annel0/avatar-sync/internal/eventbus"
	"github.com/annel0/avatar-sync/internal/logging"
	"github.com/annel0/avatar-sync/internal/network"
	"github.com/annel0/avatar-sync/internal/observability"
	"github.com/annel0/avatar-sync/internal/replication"
	"github.com/annel0/avatar-sync/internal/world/entity"
	"github.com/annel0/avatar-sync/internal/world/npc"
)

func main() {
	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎮 Запуск сервера синхронизации аватаров...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load("")
	if err != nil {
		logging.Warn("Конфиг не загружен (%v), используем значения по умолчанию", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	httpPort := cfg.Server.GetHTTPPort()
	tickMs := cfg.World.GetTickMs()
	logging.Info("📡 Конфигурация: HTTP=:%d, tick=%dms, NPC=%d лис + %d цезиумов",
		httpPort, tickMs, cfg.World.GetFoxes(), cfg.World.GetCesiums())

	// === ТЕЛЕМЕТРИЯ ===
	ctx := context.Background()
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "avatar_sync")
	if err != nil {
		logging.Warn("Телеметрия недоступна: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			logging.Error("❌ JetStream недоступен (%v), переходим на in-memory шину", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			logging.Info("📨 Шина событий: NATS JetStream (%s)", cfg.EventBus.URL)
			bus = jsBus
		}
	} else {
		logging.Info("📨 Шина событий: in-memory")
		bus = eventbus.NewMemoryBus(1024)
	}
	eventbus.Init(bus)

	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.Start()
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Слушатель журнала шины не запустился: %v", err)
	}

	// === МИР ===
	store := entity.NewStore(cfg.World.GetNPCMapLimit(), cfg.World.GetPushMapLimit())
	engine := npc.NewEngine(store)
	for i := 0; i < cfg.World.GetFoxes(); i++ {
		engine.Spawn(entity.ModelFox)
	}
	for i := 0; i < cfg.World.GetCesiums(); i++ {
		engine.Spawn(entity.ModelCesium)
	}
	logging.Info("🦊 Мир заселён: %d NPC", engine.Count())

	// === РЕПЛИКАЦИЯ ===
	var batcher *replication.BatchManager
	if cfg.Replication.Enabled {
		var compressor replication.BatchCompressor
		if cfg.Replication.UseZstd {
			compressor, err = replication.NewZstdCompressor()
			if err != nil {
				logging.Warn("zstd недоступен (%v), батчи пойдут без сжатия", err)
				compressor = replication.NewPassthroughCompressor()
			}
		} else {
			compressor = replication.NewPassthroughCompressor()
		}
		batcher = replication.NewBatchManager(bus, "avatar_server",
			cfg.Replication.BatchSize,
			time.Duration(cfg.Replication.FlushMs)*time.Millisecond,
			compressor)
		logging.Info("📦 Пакетная репликация включена (zstd=%v)", cfg.Replication.UseZstd)
	}

	// === СЕРВЕРЫ ===
	restServer := api.NewRestServer(api.Config{
		Port:  fmt.Sprintf(":%d", httpPort),
		Store: store,
	})

	gameServer := network.NewGameServer(store, engine, network.Options{
		Tick:    time.Duration(tickMs) * time.Millisecond,
		Batcher: batcher,
	})
	gameServer.RegisterRoutes(restServer.Router())

	if err := restServer.Start(); err != nil {
		logging.Error("❌ Ошибка запуска HTTP сервера: %v", err)
		log.Fatalf("❌ Ошибка запуска HTTP сервера: %v", err)
	}
	gameServer.Start()

	// Отдельный порт для Prometheus: скрейпинг не мешает игровому трафику
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("Сервер метрик остановился: %v", err)
		}
	}()

	logging.Info("✅ Сервер запущен: ws://localhost:%d/ws", httpPort)

	// === GRACEFUL SHUTDOWN ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("🛑 Получен сигнал %v, останавливаемся...", sig)

	gameServer.Stop()
	if batcher != nil {
		batcher.Stop()
	}
	busMetrics.Stop()

	if err := restServer.Stop(); err != nil {
		logging.Error("Ошибка остановки HTTP сервера: %v", err)
	}
	_ = metricsSrv.Close()
	if err := bus.Close(); err != nil {
		logging.Error("Ошибка закрытия шины событий: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервер остановлен")
}
