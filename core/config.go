package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Client   ClientConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		BodyLimit                 string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	StorageConfig struct {
		Driver        string // local | b2
		LocalDir      string
		B2AccountID   string
		B2AppKey      string
		B2Bucket      string
		MaxImageWidth int
	}

	// ClientConfig configures the student terminal client.
	ClientConfig struct {
		BaseURL     string
		Timeout     time.Duration
		SessionFile string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed with the env name, eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "LearnSpace")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("secretKey", "x1s!u$9=)b2-learnspace-dev-secret-7@h#0&qf")
	conf.SetDefault("frontendBaseURL", "http://127.0.0.1:5173")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.bodyLimit", "64M")

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "learnspace")
	conf.SetDefault("database.user", "learnspace")
	conf.SetDefault("database.password", "learnspace")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	conf.SetDefault("database.inMemory", false)

	conf.SetDefault("storage.driver", "local")
	conf.SetDefault("storage.localDir", filepath.Join(os.TempDir(), "learnspace-media"))
	conf.SetDefault("storage.b2AccountID", "")
	conf.SetDefault("storage.b2AppKey", "")
	conf.SetDefault("storage.b2Bucket", "")
	conf.SetDefault("storage.maxImageWidth", 1920)

	conf.SetDefault("client.baseURL", "http://127.0.0.1:8000")
	conf.SetDefault("client.timeout", 30*time.Second)
	conf.SetDefault("client.sessionFile", defaultSessionFile())

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		from = &mail.Address{Address: "noreply@localhost"}
	}

	return &Config{
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: *from,
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Address:                   conf.GetString("server.address"),
			DebugHost:                 conf.GetString("server.debugHost"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			BodyLimit:                 conf.GetString("server.bodyLimit"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			InMemory:      conf.GetBool("database.inMemory"),
		},
		Storage: StorageConfig{
			Driver:        conf.GetString("storage.driver"),
			LocalDir:      conf.GetString("storage.localDir"),
			B2AccountID:   conf.GetString("storage.b2AccountID"),
			B2AppKey:      conf.GetString("storage.b2AppKey"),
			B2Bucket:      conf.GetString("storage.b2Bucket"),
			MaxImageWidth: conf.GetInt("storage.maxImageWidth"),
		},
		Client: ClientConfig{
			BaseURL:     conf.GetString("client.baseURL"),
			Timeout:     conf.GetDuration("client.timeout"),
			SessionFile: conf.GetString("client.sessionFile"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, in-memory everything.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "LearnSpace",
		Build:            "test",
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Name: "LearnSpace", Address: "noreply@localhost"},
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
			BodyLimit:                 "8M",
		},
		Database: DatabaseConfig{InMemory: true},
		Storage:  StorageConfig{Driver: "memory", MaxImageWidth: 640},
		Client:   ClientConfig{Timeout: 5 * time.Second},
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "learnspace", "session.json")
}
