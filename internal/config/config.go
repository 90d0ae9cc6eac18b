package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	ApplicationName  string
	StatementTimeout time.Duration
	AutoMigrate      bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type SecurityConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	OTPSecret         string
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
	// ExposeErrors adds raw error strings to 500 responses.
	ExposeErrors bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type GatewayConfig struct {
	URL    string
	APIKey string
	Sender string
}

type NotifyConfig struct {
	DefaultChannel string
	DefaultRegion  string
	SMTP           SMTPConfig
	SMS            GatewayConfig
	WhatsApp       GatewayConfig
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	OTPSweepSpec string
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Notify           NotifyConfig
	Worker           WorkerConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *AppConfig) Validate() error {
	if c.Security.JWTTTL <= 0 {
		return errors.New("security.jwtttl must be positive")
	}
	if c.Security.OTPTTL <= 0 {
		return errors.New("security.otpttl must be positive")
	}
	if !c.IsProduction() {
		return nil
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwtsecret is required in production")
	}
	if c.Security.OTPSecret == "" {
		return errors.New("security.otpsecret is required in production")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required in production")
	}
	return nil
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("KAPACITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// exposeerrors defaults to the environment unless set explicitly
	if !v.IsSet("security.exposeerrors") {
		cfg.Security.ExposeErrors = cfg.Environment != "production"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.applicationname", "kapacity")
	v.SetDefault("postgres.statementtimeout", "5s")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtttl", "1h")
	v.SetDefault("security.otpsecret", "")
	v.SetDefault("security.otpttl", "15m")
	v.SetDefault("security.otpmaxattempts", 5)
	v.SetDefault("security.otpresendcooldown", "45s")

	v.SetDefault("notify.defaultchannel", "email")
	v.SetDefault("notify.defaultregion", "NG")
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "no-reply@kapacity.local")
	v.SetDefault("notify.sms.url", "")
	v.SetDefault("notify.sms.apikey", "")
	v.SetDefault("notify.sms.sender", "KAPACITY")
	v.SetDefault("notify.whatsapp.url", "")
	v.SetDefault("notify.whatsapp.apikey", "")
	v.SetDefault("notify.whatsapp.sender", "")

	v.SetDefault("worker.stream", "kapacity:tasks")
	v.SetDefault("worker.group", "kapacity-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("jobs.otpsweepspec", "0 * * * * *") // every minute

	v.SetDefault("allowcorsorigins", []string{})
}
