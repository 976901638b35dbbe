// =============================================================================
// 📦 AgentCoord 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Coordination: DefaultCoordinationConfig(),
		Store:        DefaultStoreConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Events:       DefaultEventsConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认运维端点配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        9091,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultCoordinationConfig 返回默认协调配置
func DefaultCoordinationConfig() CoordinationConfig {
	return CoordinationConfig{
		AcceptanceThreshold: 0.5,
		Weights: WeightsConfig{
			Role:         0.25,
			Expertise:    0.25,
			Skills:       0.20,
			Availability: 0.15,
			Performance:  0.15,
		},
		OverloadedPercent:    80,
		UnderutilizedPercent: 40,
		RebalanceInterval:    5 * time.Minute,
		Projects:             []string{},
		InitiatedBy:          "scheduler",
		MaxParallel:          4,
		TriggerRate:          1,
		TriggerBurst:         3,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:           "memory",
		BaseDir:        "./data/coordination",
		KeyPrefix:      "agentcoord:",
		ReserveRetries: 5,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentcoord",
		Password:        "",
		Name:            "agentcoord",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// DefaultEventsConfig 返回默认事件总线配置
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		Bus:     "memory",
		Channel: "agentcoord:events",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentcoord",
		SampleRate:   0.1,
	}
}
