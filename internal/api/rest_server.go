package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/avatar-sync/internal/middleware"
	"github.com/annel0/avatar-sync/internal/world/entity"
)

// RestServer обслуживает HTTP-поверхность сервера: health/status
// и websocket-апгрейд игрового протокола, который монтируется снаружи.
type RestServer struct {
	router  *gin.Engine
	store   *entity.Store
	port    string
	metrics *ServerMetrics
	httpSrv *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port  string        // порт для запуска сервера, например ":3000"
	Store *entity.Store // стор сущностей для /status
}

// NewRestServer создает новый HTTP сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":3000"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("avatar_sync"))

	promMw := middleware.NewPrometheusMiddleware("avatar_sync")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:  router,
		store:   config.Store,
		port:    config.Port,
		metrics: NewServerMetrics(),
	}

	server.setupRoutes()
	return server
}

// Router возвращает gin-движок для монтирования дополнительных маршрутов
// (websocket-апгрейд игрового сервера регистрируется через него).
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS: клиент может открываться с другого origin
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/status", rs.handleStatus)
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStatus возвращает сводку о мире и процессе
func (rs *RestServer) handleStatus(c *gin.Context) {
	players, npcs := rs.store.Counts()

	memMB, _ := rs.metrics.GetMemoryUsage()
	cpuPct, _ := rs.metrics.GetCPUUsage()

	c.JSON(http.StatusOK, gin.H{
		"uptime":    rs.metrics.GetUptime(),
		"players":   players,
		"npcs":      npcs,
		"memory_mb": fmt.Sprintf("%.1f", memMB),
		"cpu_pct":   fmt.Sprintf("%.1f", cpuPct),
	})
}

// Start запускает HTTP сервер (неблокирующе)
func (rs *RestServer) Start() error {
	rs.httpSrv = &http.Server{
		Addr:    rs.port,
		Handler: rs.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := rs.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Даём серверу шанс упасть сразу (занятый порт)
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop останавливает HTTP сервер с graceful shutdown
func (rs *RestServer) Stop() error {
	if rs.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rs.httpSrv.Shutdown(ctx)
}
