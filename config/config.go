package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`

	// EdgeGatewayToken, when set, requires every request to carry the edge
	// gateway's bearer token. Leave empty to accept direct traffic in dev.
	EdgeGatewayToken string `env:"EDGE_GATEWAY_TOKEN"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS" env-default:"http://localhost:3000"`

	Wallet       WalletConfig
	Gateway      GatewayConfig
	Sync         SyncConfig
	Notification NotificationConfig
	Storage      StorageConfig
}

type WalletConfig struct {
	MinWithdrawal      int64         `env:"MIN_WITHDRAWAL_AMOUNT" env-default:"500000"`
	WithdrawalCooldown time.Duration `env:"WITHDRAWAL_COOLDOWN" env-default:"24h"`
	SignupTokenBonus   int64         `env:"SIGNUP_TOKEN_BONUS" env-default:"1000"`
}

// MinWithdrawalAmount returns the configured minimum as a decimal.
func (c WalletConfig) MinWithdrawalAmount() decimal.Decimal {
	return decimal.NewFromInt(c.MinWithdrawal)
}

func (c WalletConfig) SignupBonus() decimal.Decimal {
	return decimal.NewFromInt(c.SignupTokenBonus)
}

type GatewayConfig struct {
	BaseURL            string `env:"ZIBAL_BASE_URL" env-default:"https://gateway.zibal.ir"`
	PayBaseURL         string `env:"ZIBAL_PAY_BASE_URL" env-default:"https://gateway.zibal.ir/start"`
	Merchant           string `env:"ZIBAL_MERCHANT" env-default:"zibal"`
	CallbackBaseURL    string `env:"PAYMENT_CALLBACK_BASE_URL" env-required:"true"`
	SuccessRedirectURL string `env:"PAYMENT_SUCCESS_REDIRECT_URL" env-required:"true"`
	FailureRedirectURL string `env:"PAYMENT_FAILURE_REDIRECT_URL" env-required:"true"`
}

type SyncConfig struct {
	ServiceURL   string `env:"SYNC_SERVICE_URL" env-required:"true"`
	EndpointPath string `env:"SYNC_ENDPOINT_PATH" env-default:"/api/v1/public/profiles"`
	ServiceToken string `env:"TOURNAMENT_SERVICE_TOKEN" env-required:"true"`
}

type NotificationConfig struct {
	ServiceURL   string `env:"NOTIFICATION_SERVICE_URL"`
	ServiceToken string `env:"NOTIFICATION_SERVICE_TOKEN"`
}

// StorageConfig holds the R2 credentials for evidence uploads. When AccountID
// is empty the service falls back to local disk storage.
type StorageConfig struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
	LocalDir        string `env:"UPLOAD_DIR" env-default:"uploads"`
	LocalBaseURL    string `env:"UPLOAD_BASE_URL" env-default:"http://localhost:8080/uploads"`
}

// Load reads configuration from the environment, with .env as a convenience
// for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
