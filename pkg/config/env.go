package config

const EnvPrefix = "ORDERRECON"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LaybuyEnvSandbox    = "sandbox"
	LaybuyEnvProduction = "production"
)

const (
	EnvAppEnv     = "ORDERRECON_APP_ENV"
	EnvPort       = "ORDERRECON_APP_PORT"
	EnvLogLevel   = "ORDERRECON_LOG_LEVEL"
	EnvDBDSN      = "ORDERRECON_DB_DSN"
	EnvDBHost     = "ORDERRECON_DB_HOST"
	EnvDBUser     = "ORDERRECON_DB_USER"
	EnvDBName     = "ORDERRECON_DB_NAME"
	EnvRedisURL   = "ORDERRECON_REDIS_URL"
	EnvGCPProject = "ORDERRECON_GCP_PROJECT_ID"

	EnvLaybuyMerchantID = "ORDERRECON_LAYBUY_MERCHANT_ID"
	EnvLaybuyAPIKey     = "ORDERRECON_LAYBUY_API_KEY"
	EnvLaybuyEnv        = "ORDERRECON_LAYBUY_ENV"

	EnvPaymentMethod  = "ORDERRECON_PAYMENT_METHOD"
	EnvMinOrderTotal  = "ORDERRECON_MIN_ORDER_TOTAL"
	EnvMaxOrderTotal  = "ORDERRECON_MAX_ORDER_TOTAL"
	EnvFrequentWindow = "ORDERRECON_FREQUENT_WINDOW"
	EnvCatchupWindow  = "ORDERRECON_CATCHUP_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
