package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // PostgreSQL配置
	Chain    ChainConfig    `mapstructure:"chain"`    // 链上合约配置
	Football FeedConfig     `mapstructure:"football"` // 赛程数据源配置（football-data）
	ML       FeedConfig     `mapstructure:"ml"`       // 赔率预测服务配置
	Elo      FeedConfig     `mapstructure:"elo"`      // Elo 快照数据源配置
	Sync     SyncConfig     `mapstructure:"sync"`     // 同步调度配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// ChainConfig 链上合约配置。Oracle 私钥对应地址需为合约 owner，Gas 由该账户支付
type ChainConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`            // RPC地址
	ContractAddress  string `mapstructure:"contract_address"`   // 博彩合约地址
	OraclePrivateKey string `mapstructure:"oracle_private_key"` // Oracle签名私钥（建议仅从env读取）
	ChainID          int64  `mapstructure:"chain_id"`           // 链ID（默认 Sepolia 11155111）
	GasLimit         uint64 `mapstructure:"gas_limit"`          // 状态变更调用Gas上限
	ReceiptAttempts  int    `mapstructure:"receipt_attempts"`   // 等待回执轮询次数
	ReceiptInterval  int    `mapstructure:"receipt_interval"`   // 轮询间隔（秒）
}

// FeedConfig 外部HTTP数据源通用配置
type FeedConfig struct {
	BaseURL     string `mapstructure:"base_url"`    // API基础地址
	AuthToken   string `mapstructure:"auth_token"`  // 认证Token
	Competition string `mapstructure:"competition"` // 联赛代码（football-data 用，如 PL）
	Timeout     int    `mapstructure:"timeout"`     // 请求超时（秒）
	Proxy       string `mapstructure:"proxy"`       // 代理地址
}

// SyncConfig 同步调度配置。未配置项在加载后填入默认值
type SyncConfig struct {
	OracleInterval   time.Duration `mapstructure:"oracle_interval"`   // 链上同步周期
	PipelineInterval time.Duration `mapstructure:"pipeline_interval"` // 赛程/赔率计算周期
	EloInterval      time.Duration `mapstructure:"elo_interval"`      // Elo快照拉取周期
	InitialDelay     time.Duration `mapstructure:"initial_delay"`     // 链上同步首次延迟
	OpenLeadMin      int           `mapstructure:"open_lead_min"`     // 开盘提前窗口（分钟）
	ResolveDelayMin  int           `mapstructure:"resolve_delay_min"` // 结算延迟窗口（分钟）
	FetchMatchLimit  int           `mapstructure:"fetch_match_limit"` // 单次拉取赛程上限
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		cfg.Chain.ContractAddress = v
	}
	if v := os.Getenv("ORACLE_PRIVATE_KEY"); v != "" {
		cfg.Chain.OraclePrivateKey = v
	}
	if v := os.Getenv("FOOTBALL_DATA_API_KEY"); v != "" {
		cfg.Football.AuthToken = v
	}
}

// applyDefaults 补全未配置的调度与链参数
func applyDefaults(cfg *Config) {
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 11155111 // Sepolia
	}
	if cfg.Chain.GasLimit == 0 {
		cfg.Chain.GasLimit = 300000
	}
	if cfg.Chain.ReceiptAttempts == 0 {
		cfg.Chain.ReceiptAttempts = 30
	}
	if cfg.Chain.ReceiptInterval == 0 {
		cfg.Chain.ReceiptInterval = 2
	}
	if cfg.Sync.OracleInterval == 0 {
		cfg.Sync.OracleInterval = 3 * time.Minute
	}
	if cfg.Sync.PipelineInterval == 0 {
		cfg.Sync.PipelineInterval = 10 * time.Minute
	}
	if cfg.Sync.EloInterval == 0 {
		cfg.Sync.EloInterval = 24 * time.Hour
	}
	if cfg.Sync.InitialDelay == 0 {
		cfg.Sync.InitialDelay = 20 * time.Second
	}
	if cfg.Sync.OpenLeadMin == 0 {
		cfg.Sync.OpenLeadMin = 10
	}
	if cfg.Sync.ResolveDelayMin == 0 {
		cfg.Sync.ResolveDelayMin = 150
	}
	if cfg.Sync.FetchMatchLimit == 0 {
		cfg.Sync.FetchMatchLimit = 50
	}
}
