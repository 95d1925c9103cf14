package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      int
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// DomainConfig drives tenant host resolution.
	DomainConfig struct {
		// BaseDomain is the apex used for institution subdomains
		// (e.g. "talenttune.com"). When empty, the base domain is
		// derived from each request's host.
		BaseDomain string
		// ReservedSubdomains are labels that never resolve to an
		// institution slug (marketing hosts, the app itself).
		ReservedSubdomains []string
		// LocalTLD marks two-label hosts like "acme.test" as
		// subdomain hosts during local development.
		LocalTLD string
	}

	StripeConfig struct {
		SecretKey     string
		WebhookSecret string
		PriceID       string
	}

	DockployConfig struct {
		BaseURL string
		APIKey  string
		AppID   string
	}

	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string
		Build                     string
		AppName                   string
		AppSlug                   string
		SecretKey                 []byte
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		SubscriptionLinkTimeout   time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Domain   DomainConfig
		Stripe   StripeConfig
		Dockploy DockployConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// IsReservedSubdomain reports whether label may never be used as an
// institution slug.
func (c DomainConfig) IsReservedSubdomain(label string) bool {
	for _, s := range c.ReservedSubdomains {
		if s == label {
			return true
		}
	}
	return false
}

// NewConfig loads configuration from the environment (and an optional
// config/.env.<env> file) on top of sane defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "TalentTune")
	v.SetDefault("appSlug", "talenttune")
	v.SetDefault("secretKey", "wq83=k!v*#^ry9$d0q&+h(2l_e5u%z7@pcn4sbt-x6mfj1go8a")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("subscriptionLinkTimeout", 7*24*time.Hour)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseName", "talenttune")
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("appDomain", "")                 // e.g. talenttune.com
	v.SetDefault("reservedSubdomains", "www,app") // comma-separated
	v.SetDefault("localTLD", ".test")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	reserved := make([]string, 0, 4)
	for _, s := range strings.Split(v.GetString("reservedSubdomains"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			reserved = append(reserved, s)
		}
	}
	// the app's own slug is never an institution
	appSlug := v.GetString("appSlug")
	if appSlug != "" {
		reserved = append(reserved, appSlug)
	}

	return &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  testMode,
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		AppSlug:                   appSlug,
		SecretKey:                 []byte(v.GetString("secretKey")),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SubscriptionLinkTimeout:   v.GetDuration("subscriptionLinkTimeout"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetInt("serverPort"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Domain: DomainConfig{
			BaseDomain:         v.GetString("appDomain"),
			ReservedSubdomains: reserved,
			LocalTLD:           v.GetString("localTLD"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripeSecretKey"),
			WebhookSecret: v.GetString("stripeWebhookSecret"),
			PriceID:       v.GetString("stripePriceID"),
		},
		Dockploy: DockployConfig{
			BaseURL: v.GetString("dockployBaseURL"),
			APIKey:  v.GetString("dockployAPIKey"),
			AppID:   v.GetString("dockployAppID"),
		},
	}
}
