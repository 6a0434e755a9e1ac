package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	World       WorldConfig       `yaml:"world"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Replication ReplicationConfig `yaml:"replication"`
}

// ServerConfig описывает сетевые порты сервера.
// HTTP-порт обслуживает и REST, и websocket-апгрейд /ws.
type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// WorldConfig описывает параметры арены и состав NPC.
// Два лимита карты намеренно раздельные: NPC самоограничиваются
// квадратом ±28, а толчки и движение игроков — квадратом ±30.
type WorldConfig struct {
	TickMs       int     `yaml:"tick_ms"`
	NPCMapLimit  float64 `yaml:"npc_map_limit"`
	PushMapLimit float64 `yaml:"push_map_limit"`
	Foxes        int     `yaml:"foxes"`
	Cesiums      int     `yaml:"cesiums"`
}

// EventBusConfig описывает подключение к шине событий.
// Пустой URL означает in-memory шину.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// ReplicationConfig управляет пакетной публикацией изменений сущностей в шину.
type ReplicationConfig struct {
	Enabled    bool `yaml:"enabled"`
	BatchSize  int  `yaml:"batch_size"`
	FlushMs    int  `yaml:"flush_every_ms"`
	UseZstd    bool `yaml:"use_zstd_compression"`
}

// GetHTTPPort возвращает HTTP порт с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "AVATAR_HTTP_PORT", 3000)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "AVATAR_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// GetTickMs возвращает период тика рассылки в миллисекундах
func (w *WorldConfig) GetTickMs() int {
	if w.TickMs > 0 {
		return w.TickMs
	}
	return 50
}

// GetNPCMapLimit возвращает полуширину квадрата самоограничения NPC
func (w *WorldConfig) GetNPCMapLimit() float64 {
	if w.NPCMapLimit > 0 {
		return w.NPCMapLimit
	}
	return 28
}

// GetPushMapLimit возвращает полуширину квадрата для толчков и движения
func (w *WorldConfig) GetPushMapLimit() float64 {
	if w.PushMapLimit > 0 {
		return w.PushMapLimit
	}
	return 30
}

// GetFoxes возвращает количество NPC-лис при старте
func (w *WorldConfig) GetFoxes() int {
	if w.Foxes > 0 {
		return w.Foxes
	}
	return 3
}

// GetCesiums возвращает количество NPC-роботов при старте
func (w *WorldConfig) GetCesiums() int {
	if w.Cesiums > 0 {
		return w.Cesiums
	}
	return 3
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV AVATAR_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AVATAR_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
