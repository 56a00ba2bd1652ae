package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "loja"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LOJA_DB_DSN"
	EnvDBHost = "LOJA_DB_HOST"
	EnvDBUser = "LOJA_DB_USER"
	EnvDBName = "LOJA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
