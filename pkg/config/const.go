package config

// EnvPrefix is passed to envconfig; every field carries an explicit name so
// the prefix only matters for fields without one.
const EnvPrefix = "bloblet"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (error messages,
// tests).
const (
	EnvAppEnv   = "BLOBLET_APP_ENV"
	EnvPort     = "BLOBLET_APP_PORT"
	EnvDBDSN    = "BLOBLET_DB_DSN"
	EnvDBHost   = "BLOBLET_DB_HOST"
	EnvDBUser   = "BLOBLET_DB_USER"
	EnvDBName   = "BLOBLET_DB_NAME"
	EnvRedisURL = "BLOBLET_REDIS_URL"

	EnvJWTSecret = "BLOBLET_JWT_SECRET"
	EnvJWTIssuer = "BLOBLET_JWT_ISSUER"

	EnvBattleHouseAddress     = "BLOBLET_BATTLE_HOUSE_ADDRESS"
	EnvTreasuryPointsPerToken = "BLOBLET_TREASURY_POINTS_PER_TOKEN"
	EnvTreasuryDepositAddress = "BLOBLET_TREASURY_DEPOSIT_ADDRESS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
