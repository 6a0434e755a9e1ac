package network

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// serverMetrics — Prometheus-метрики игрового сервера.
type serverMetrics struct {
	connectedClients prometheus.Gauge
	tickDuration     prometheus.Histogram
	broadcastsTotal  prometheus.Counter
	pushesTotal      *prometheus.CounterVec
	inputsTotal      prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *serverMetrics
)

// newServerMetrics возвращает общий набор метрик.
// Метрики регистрируются в дефолтном регистре один раз на процесс,
// поэтому несколько GameServer (например, в тестах) делят один набор.
func newServerMetrics() *serverMetrics {
	metricsOnce.Do(func() {
		sharedMetrics = buildServerMetrics()
	})
	return sharedMetrics
}

func buildServerMetrics() *serverMetrics {
	m := &serverMetrics{
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avatar_sync",
			Name:      "connected_clients",
			Help:      "Текущее количество подключённых клиентов.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avatar_sync",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика (NPC + рассылка снимка).",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar_sync",
			Name:      "broadcasts_total",
			Help:      "Количество разосланных снимков мира.",
		}),
		pushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avatar_sync",
			Name:      "pushes_total",
			Help:      "Обработанные толчки по типу исхода.",
		}, []string{"outcome"}),
		inputsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar_sync",
			Name:      "player_inputs_total",
			Help:      "Принятые сообщения playerInput.",
		}),
	}

	prometheus.MustRegister(m.connectedClients, m.tickDuration, m.broadcastsTotal, m.pushesTotal, m.inputsTotal)
	return m
}
