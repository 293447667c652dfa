package constants

const (
	ALLOWED_ORIGINS       = "/portal/ALLOWED_ORIGINS"
	DATABASE_RDS_ENDPOINT = "/portal/DATABASE_RDS_ENDPOINT"
	DATABASE_PORT         = "/portal/DATABASE_PORT"
	DATABASE_NAME         = "/portal/DATABASE_NAME"
	DATABASE_USERNAME     = "/portal/DATABASE_USERNAME"
	DATABASE_PASSWORD     = "/portal/DATABASE_PASSWORD"
	SSL_MODE              = "/portal/SSL_MODE"
	EMAIL_API_URL         = "/portal/EMAIL_API_URL"
	EMAIL_API_KEY         = "/portal/EMAIL_API_KEY"
	EMAIL_FROM_ADDRESS    = "/portal/EMAIL_FROM_ADDRESS"
	PORTAL_BASE_URL       = "/portal/PORTAL_BASE_URL"
	COGNITO_USER_POOL_ID  = "/portal/COGNITO_USER_POOL_ID"
	DRIVER_NAME           = "postgres"
)
