package utils

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Payment   PaymentConfig
	Providers ProvidersConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PaymentConfig struct {
	Currency string
	// PendingExpiry is how long a payment may sit in pending before the
	// reconciliation sweep fails it.
	PendingExpiry time.Duration
	// ProviderTimeout bounds every outbound gateway call.
	ProviderTimeout time.Duration
	// ExpirySweepInterval is how often the stale-payment sweep runs.
	ExpirySweepInterval time.Duration
}

type ProvidersConfig struct {
	Wave        WaveConfig
	OrangeMoney OrangeMoneyConfig
	Paydunya    PaydunyaConfig
	Card        CardConfig
}

type WaveConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

type OrangeMoneyConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	MerchantKey  string
}

type PaydunyaConfig struct {
	BaseURL    string
	MasterKey  string
	PrivateKey string
	Token      string
}

type CardConfig struct {
	BaseURL string
	APIKey  string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYMENT_CURRENCY", "XOF")
	viper.SetDefault("PAYMENT_PENDING_EXPIRY_MINUTES", 30)
	viper.SetDefault("PROVIDER_TIMEOUT_SECONDS", 15)
	viper.SetDefault("PAYMENT_EXPIRY_SWEEP_MINUTES", 5)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASS"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			Currency:            viper.GetString("PAYMENT_CURRENCY"),
			PendingExpiry:       time.Duration(viper.GetInt("PAYMENT_PENDING_EXPIRY_MINUTES")) * time.Minute,
			ProviderTimeout:     time.Duration(viper.GetInt("PROVIDER_TIMEOUT_SECONDS")) * time.Second,
			ExpirySweepInterval: time.Duration(viper.GetInt("PAYMENT_EXPIRY_SWEEP_MINUTES")) * time.Minute,
		},
		Providers: ProvidersConfig{
			Wave: WaveConfig{
				BaseURL:       viper.GetString("WAVE_BASE_URL"),
				APIKey:        viper.GetString("WAVE_API_KEY"),
				WebhookSecret: viper.GetString("WAVE_WEBHOOK_SECRET"),
			},
			OrangeMoney: OrangeMoneyConfig{
				BaseURL:      viper.GetString("ORANGE_MONEY_BASE_URL"),
				ClientID:     viper.GetString("ORANGE_MONEY_CLIENT_ID"),
				ClientSecret: viper.GetString("ORANGE_MONEY_CLIENT_SECRET"),
				MerchantKey:  viper.GetString("ORANGE_MONEY_MERCHANT_KEY"),
			},
			Paydunya: PaydunyaConfig{
				BaseURL:    viper.GetString("PAYDUNYA_BASE_URL"),
				MasterKey:  viper.GetString("PAYDUNYA_MASTER_KEY"),
				PrivateKey: viper.GetString("PAYDUNYA_PRIVATE_KEY"),
				Token:      viper.GetString("PAYDUNYA_TOKEN"),
			},
			Card: CardConfig{
				BaseURL: viper.GetString("CARD_BASE_URL"),
				APIKey:  viper.GetString("CARD_API_KEY"),
			},
		},
	}

	return config, nil
}
