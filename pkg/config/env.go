package config

// EnvPrefix is passed to envconfig; individual fields carry full names so
// the prefix only matters for errors envconfig reports.
const EnvPrefix = "MARKETSIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "MARKETSIDE_APP_ENV"
	EnvPort       = "MARKETSIDE_APP_PORT"
	EnvDBDSN      = "MARKETSIDE_DB_DSN"
	EnvDBHost     = "MARKETSIDE_DB_HOST"
	EnvDBUser     = "MARKETSIDE_DB_USER"
	EnvDBName     = "MARKETSIDE_DB_NAME"
	EnvRedisURL   = "MARKETSIDE_REDIS_URL"
	EnvJWTSecret  = "MARKETSIDE_JWT_SECRET"
	EnvJWTIssuer  = "MARKETSIDE_JWT_ISSUER"
	EnvJWTExpMins = "MARKETSIDE_JWT_EXPIRATION_MINUTES"

	EnvGatewayToken         = "MARKETSIDE_GATEWAY_ACCESS_TOKEN"
	EnvGatewayEnv           = "MARKETSIDE_GATEWAY_ENV"
	EnvGatewayWebhookSecret = "MARKETSIDE_GATEWAY_WEBHOOK_SECRET"

	EnvGCPProjectID      = "MARKETSIDE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "MARKETSIDE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "MARKETSIDE_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubNotifTopic  = "MARKETSIDE_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifSub    = "MARKETSIDE_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
