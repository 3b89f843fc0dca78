package config

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Local    bool   `yaml:"local"`
}

type JWTConfig struct {
	SecretKey       string `yaml:"secret_key"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
}

// NetworkConfig : описание одной блокчейн-сети
// ExplorerTxURL — шаблон ссылки на транзакцию, например https://etherscan.io/tx/%s
type NetworkConfig struct {
	ChainID       int64  `yaml:"chain_id"`
	RPCEndpoint   string `yaml:"rpc_endpoint"`
	ExplorerTxURL string `yaml:"explorer_tx_url"`
}

// BlockchainConfig : настройки якорения документов в блокчейне
type BlockchainConfig struct {
	// PrivateKey — hex-ключ сервисного аккаунта, с которого отправляются транзакции
	PrivateKey     string                   `yaml:"private_key"`
	DefaultNetwork string                   `yaml:"default_network"`
	Networks       map[string]NetworkConfig `yaml:"networks"`
	// ConfirmTimeout — сколько ждём одно подтверждение, например "90s"
	ConfirmTimeout string `yaml:"confirm_timeout"`
	// ReconcileInterval/ReconcileGrace — настройки фонового досмотра завершённых,
	// но не заякоренных документов
	ReconcileInterval string `yaml:"reconcile_interval"`
	ReconcileGrace    string `yaml:"reconcile_grace"`
}

type WebhookConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type AdminConfig struct {
	AdminToken string `yaml:"admin_token"`
}

type TTL struct {
	S3AndRedis int `yaml:"s3_and_redis"`
}
