package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Ledger       LedgerConfig
	Battle       BattleConfig
	Treasury     TreasuryConfig
	Chain        ChainConfig
	Orders       OrdersConfig
	Score        ScoreConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Treasury.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env                string   `envconfig:"BLOBLET_APP_ENV" required:"true"`
	Port               string   `envconfig:"BLOBLET_APP_PORT" required:"true"`
	LogLevel           string   `envconfig:"BLOBLET_LOG_LEVEL" default:"info"`
	LogWarnStack       bool     `envconfig:"BLOBLET_LOG_WARN_STACK" default:"false"`
	CORSAllowedOrigins []string `envconfig:"BLOBLET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BLOBLET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BLOBLET_DB_DSN"`
	Driver string `envconfig:"BLOBLET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BLOBLET_DB_HOST"`
	LegacyPort     int    `envconfig:"BLOBLET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BLOBLET_DB_USER"`
	LegacyPassword string `envconfig:"BLOBLET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BLOBLET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BLOBLET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BLOBLET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BLOBLET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BLOBLET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BLOBLET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BLOBLET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BLOBLET_REDIS_ADDR"`
	Password     string        `envconfig:"BLOBLET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BLOBLET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BLOBLET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BLOBLET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BLOBLET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BLOBLET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BLOBLET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BLOBLET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BLOBLET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BLOBLET_JWT_EXPIRATION_MINUTES" default:"60"`
}

// LedgerConfig tunes the append path of the point ledger.
type LedgerConfig struct {
	MaxAppendRetries int `envconfig:"BLOBLET_LEDGER_MAX_APPEND_RETRIES" default:"3"`
}

// BattleConfig carries every knob the battle resolver needs. Percentages are
// integer basis points (1/10000); the resolver never touches float math.
type BattleConfig struct {
	MinChallengePoints int64  `envconfig:"BLOBLET_BATTLE_MIN_CHALLENGE_POINTS" default:"100"`
	MinTransferPoints  int64  `envconfig:"BLOBLET_BATTLE_MIN_TRANSFER_POINTS" default:"10"`
	TransferBps        int64  `envconfig:"BLOBLET_BATTLE_TRANSFER_BPS" default:"500"`
	HouseCutBps        int64  `envconfig:"BLOBLET_BATTLE_HOUSE_CUT_BPS" default:"1000"`
	CritChanceBps      int64  `envconfig:"BLOBLET_BATTLE_CRIT_CHANCE_BPS" default:"750"`
	LootChanceBps      int64  `envconfig:"BLOBLET_BATTLE_LOOT_CHANCE_BPS" default:"1500"`
	HouseAddress       string `envconfig:"BLOBLET_BATTLE_HOUSE_ADDRESS" required:"true"`
}

// TreasuryConfig governs deposit/withdraw swaps between tokens and points.
type TreasuryConfig struct {
	PointsPerToken        string `envconfig:"BLOBLET_TREASURY_POINTS_PER_TOKEN" default:"1000"`
	RedeemFeeBps          int64  `envconfig:"BLOBLET_TREASURY_REDEEM_FEE_BPS" default:"250"`
	MinBalanceAfterRedeem int64  `envconfig:"BLOBLET_TREASURY_MIN_BALANCE_AFTER_REDEEM" default:"50"`
	DepositAddress        string `envconfig:"BLOBLET_TREASURY_DEPOSIT_ADDRESS" required:"true"`
}

// ChainConfig points at the external indexer the swap and order services
// verify transactions against.
type ChainConfig struct {
	IndexerURL string        `envconfig:"BLOBLET_CHAIN_INDEXER_URL" default:""`
	APIKey     string        `envconfig:"BLOBLET_CHAIN_INDEXER_API_KEY" default:""`
	Timeout    time.Duration `envconfig:"BLOBLET_CHAIN_INDEXER_TIMEOUT" default:"10s"`
}

// Rate returns the deposit conversion rate (points per token) as an exact decimal.
func (t TreasuryConfig) Rate() decimal.Decimal {
	rate, err := decimal.NewFromString(t.PointsPerToken)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (t TreasuryConfig) validate() error {
	rate, err := decimal.NewFromString(t.PointsPerToken)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvTreasuryPointsPerToken, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("%s must be positive, got %s", EnvTreasuryPointsPerToken, rate)
	}
	return nil
}

// OrdersConfig tunes the token-gated order quote flow.
type OrdersConfig struct {
	QuoteTTL time.Duration `envconfig:"BLOBLET_ORDERS_QUOTE_TTL" default:"15m"`
}

// ScoreConfig tunes the read-side leaderboard surface.
type ScoreConfig struct {
	LeaderboardCacheTTL time.Duration `envconfig:"BLOBLET_SCORE_LEADERBOARD_CACHE_TTL" default:"30s"`
	LeaderboardMaxLimit int           `envconfig:"BLOBLET_SCORE_LEADERBOARD_MAX_LIMIT" default:"100"`
}

// CronConfig drives the background worker cadence.
type CronConfig struct {
	Interval         time.Duration `envconfig:"BLOBLET_CRON_INTERVAL" default:"1h"`
	CareUpkeepPoints int64         `envconfig:"BLOBLET_CRON_CARE_UPKEEP_POINTS" default:"5"`
	StaleSwapAge     time.Duration `envconfig:"BLOBLET_CRON_STALE_SWAP_AGE" default:"24h"`
}

type RateLimitConfig struct {
	BattleWindow       time.Duration `envconfig:"BLOBLET_RATE_LIMIT_BATTLE_WINDOW" default:"1m"`
	BattleAddressLimit int           `envconfig:"BLOBLET_RATE_LIMIT_BATTLE_ADDRESS_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BLOBLET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BLOBLET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
