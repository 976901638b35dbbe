// =============================================================================
// 📦 AgentCoord 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentcoord.yaml").
//	    WithEnvPrefix("AGENTCOORD").
//	    WithValidator((*config.Config).Validate).
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "AGENTCOORD"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是协调引擎的完整配置结构
type Config struct {
	// Server 运维端点（/health、/metrics）配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Coordination 评分、阈值与再平衡调度配置
	Coordination CoordinationConfig `yaml:"coordination" env:"COORDINATION"`

	// Store 协调记录存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Redis 连接配置（redis 存储与 redis 事件总线共用）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置（sql 存储与迁移使用）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Events 事件总线配置
	Events EventsConfig `yaml:"events" env:"EVENTS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Registry 非 sql 存储下的静态 Agent/Task 注册表，只能在 YAML 中配置
	Registry RegistryConfig `yaml:"registry" env:"-"`
}

// ServerConfig 运维 HTTP 端点配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每秒请求数限制
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TLS 证书文件，与 TLSKeyFile 同时设置时启用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	// TLS 私钥文件
	TLSKeyFile string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// CoordinationConfig 协调引擎配置
type CoordinationConfig struct {
	// 评分接受阈值 [0,1]
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" env:"ACCEPTANCE_THRESHOLD"`
	// 评分权重
	Weights WeightsConfig `yaml:"weights" env:"WEIGHTS"`
	// 过载阈值（百分比，严格大于）
	OverloadedPercent float64 `yaml:"overloaded_percent" env:"OVERLOADED_PERCENT"`
	// 空闲阈值（百分比，严格小于）
	UnderutilizedPercent float64 `yaml:"underutilized_percent" env:"UNDERUTILIZED_PERCENT"`
	// 再平衡周期
	RebalanceInterval time.Duration `yaml:"rebalance_interval" env:"REBALANCE_INTERVAL"`
	// 参与周期再平衡的项目
	Projects []string `yaml:"projects" env:"PROJECTS"`
	// 再平衡发起者标识
	InitiatedBy string `yaml:"initiated_by" env:"INITIATED_BY"`
	// 并行再平衡的项目数上限
	MaxParallel int `yaml:"max_parallel" env:"MAX_PARALLEL"`
	// 手动触发限速（每秒）
	TriggerRate float64 `yaml:"trigger_rate" env:"TRIGGER_RATE"`
	// 手动触发突发上限
	TriggerBurst int `yaml:"trigger_burst" env:"TRIGGER_BURST"`
}

// WeightsConfig 评分权重
type WeightsConfig struct {
	Role         float64 `yaml:"role" env:"ROLE"`
	Expertise    float64 `yaml:"expertise" env:"EXPERTISE"`
	Skills       float64 `yaml:"skills" env:"SKILLS"`
	Availability float64 `yaml:"availability" env:"AVAILABILITY"`
	Performance  float64 `yaml:"performance" env:"PERFORMANCE"`
}

// StoreConfig 协调记录存储配置
type StoreConfig struct {
	// 类型: memory, file, redis, sql
	Type string `yaml:"type" env:"TYPE"`
	// 文件存储目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// Redis 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// SQL 槽位预留的乐观重试次数
	ReserveRetries int `yaml:"reserve_retries" env:"RESERVE_RETRIES"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// EventsConfig 事件总线配置
type EventsConfig struct {
	// 总线类型: memory, redis
	Bus string `yaml:"bus" env:"BUS"`
	// Redis 发布频道
	Channel string `yaml:"channel" env:"CHANNEL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RegistryConfig 进程内 Agent/Task 注册表的初始内容
type RegistryConfig struct {
	Agents []RegistryAgent `yaml:"agents"`
	Tasks  []RegistryTask  `yaml:"tasks"`
}

// RegistryAgent 注册表中的一个 Agent
type RegistryAgent struct {
	ID                 string             `yaml:"id"`
	Name               string             `yaml:"name"`
	ProjectID          string             `yaml:"project_id"`
	OwnerID            string             `yaml:"owner_id"`
	Status             string             `yaml:"status"`
	Role               string             `yaml:"role"`
	Expertise          []string           `yaml:"expertise"`
	Skills             map[string]float64 `yaml:"skills"`
	ActiveTasks        []string           `yaml:"active_tasks"`
	MaxConcurrentTasks int                `yaml:"max_concurrent_tasks"`
	// 成功率（百分比）
	SuccessRate float64 `yaml:"success_rate"`
}

// RegistryTask 注册表中的一个任务
type RegistryTask struct {
	ID        string             `yaml:"id"`
	ProjectID string             `yaml:"project_id"`
	OwnerID   string             `yaml:"owner_id"`
	Title     string             `yaml:"title"`
	Status    string             `yaml:"status"`
	Role      string             `yaml:"role"`
	Expertise []string           `yaml:"expertise"`
	Skills    map[string]float64 `yaml:"skills"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 按 env tag 递归覆盖结构体字段，键形如 PREFIX_SECTION_FIELD
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			items := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					items = append(items, p)
				}
			}
			field.Set(reflect.ValueOf(items))
		}
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	errs = append(errs, c.Coordination.validate()...)

	switch c.Store.Type {
	case "memory", "file", "redis":
	case "sql":
		if _, ok := supportedDrivers[c.Database.Driver]; !ok {
			errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported store type %q", c.Store.Type))
	}

	switch c.Events.Bus {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unsupported event bus %q", c.Events.Bus))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unsupported log level %q", c.Log.Level))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	errs = append(errs, c.Registry.validate(c.Store.Type)...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c CoordinationConfig) validate() []string {
	var errs []string
	w := c.Weights
	if w.Role < 0 || w.Expertise < 0 || w.Skills < 0 || w.Availability < 0 || w.Performance < 0 {
		errs = append(errs, "scoring weights must not be negative")
	}
	if w.Role+w.Expertise+w.Skills+w.Availability+w.Performance <= 0 {
		errs = append(errs, "at least one scoring weight must be positive")
	}
	if c.AcceptanceThreshold < 0 || c.AcceptanceThreshold > 1 {
		errs = append(errs, "acceptance_threshold must be between 0 and 1")
	}
	if c.UnderutilizedPercent < 0 || c.OverloadedPercent > 100 || c.UnderutilizedPercent >= c.OverloadedPercent {
		errs = append(errs, "expected 0 <= underutilized_percent < overloaded_percent <= 100")
	}
	if c.RebalanceInterval <= 0 {
		errs = append(errs, "rebalance_interval must be positive")
	}
	if c.MaxParallel <= 0 {
		errs = append(errs, "max_parallel must be positive")
	}
	return errs
}

func (r RegistryConfig) validate(storeType string) []string {
	if len(r.Agents) == 0 && len(r.Tasks) == 0 {
		return nil
	}
	if storeType == "sql" {
		return []string{"registry is not used with store type sql; seed the agents and tasks tables instead"}
	}

	var errs []string
	agentIDs := make(map[string]struct{}, len(r.Agents))
	for i, a := range r.Agents {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Sprintf("registry agent #%d has no id", i))
			continue
		case a.MaxConcurrentTasks <= 0:
			errs = append(errs, fmt.Sprintf("registry agent %q needs a positive max_concurrent_tasks", a.ID))
		case len(a.ActiveTasks) > a.MaxConcurrentTasks:
			errs = append(errs, fmt.Sprintf("registry agent %q holds more active tasks than its capacity", a.ID))
		}
		if _, ok := registryAgentStatuses[a.Status]; !ok {
			errs = append(errs, fmt.Sprintf("registry agent %q has unsupported status %q", a.ID, a.Status))
		}
		if a.SuccessRate < 0 || a.SuccessRate > 100 {
			errs = append(errs, fmt.Sprintf("registry agent %q success_rate must be between 0 and 100", a.ID))
		}
		if _, dup := agentIDs[a.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate registry agent %q", a.ID))
		}
		agentIDs[a.ID] = struct{}{}
	}

	taskIDs := make(map[string]struct{}, len(r.Tasks))
	for i, t := range r.Tasks {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("registry task #%d has no id", i))
			continue
		}
		if _, ok := registryTaskStatuses[t.Status]; !ok {
			errs = append(errs, fmt.Sprintf("registry task %q has unsupported status %q", t.ID, t.Status))
		}
		if _, dup := taskIDs[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate registry task %q", t.ID))
		}
		taskIDs[t.ID] = struct{}{}
	}
	return errs
}

// 空状态分别按 available / todo 处理
var (
	registryAgentStatuses = map[string]struct{}{
		"": {}, "available": {}, "busy": {}, "unavailable": {}, "blocked": {}, "offline": {},
	}
	registryTaskStatuses = map[string]struct{}{
		"": {}, "todo": {}, "in_progress": {}, "done": {},
	}
)

var supportedDrivers = map[string]struct{}{
	"postgres": {},
	"mysql":    {},
	"sqlite":   {},
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
