package buildCFG

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"

	"workshopportal/internal/mailer"
)

const (
	defaultPort        = "8080"
	defaultMode        = "release"
	defaultStoragePath = "data/workshop.db"
	defaultExportDir   = "data"

	MailModeDirect = "direct"
	MailModeQueue  = "queue"
)

// Getter is the subset of the config loader used here.
type Getter interface {
	GetString(key string) string
	GetInt(key string) int
}

var _ Getter = (*config.Config)(nil)

type ServerConfig struct {
	Port string
	Mode string
}

type StorageConfig struct {
	Path      string
	ExportDir string
}

type AdminConfig struct {
	Password      string
	SessionSecret string
}

type MailerConfig struct {
	Mode string
	SMTP mailer.Config
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

func BuildServerConfig(cfg Getter, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		log.Warn().Msgf("server.port not set, using %s", defaultPort)
		port = defaultPort
	}
	mode := cfg.GetString("server.mode")
	if mode == "" {
		mode = defaultMode
	}
	return ServerConfig{Port: port, Mode: mode}
}

func BuildStorageConfig(cfg Getter, log *zerolog.Logger) StorageConfig {
	sc := StorageConfig{
		Path:      cfg.GetString("storage.path"),
		ExportDir: cfg.GetString("storage.export_dir"),
	}
	if sc.Path == "" {
		log.Warn().Msgf("storage.path not set, using %s", defaultStoragePath)
		sc.Path = defaultStoragePath
	}
	if sc.ExportDir == "" {
		sc.ExportDir = defaultExportDir
	}
	return sc
}

func BuildAdminConfig(cfg Getter, log *zerolog.Logger) (AdminConfig, error) {
	ac := AdminConfig{
		Password:      secret(cfg, "admin.password", "PORTAL_ADMIN_PASSWORD"),
		SessionSecret: secret(cfg, "session.secret", "PORTAL_SESSION_SECRET"),
	}
	if ac.Password == "" {
		return AdminConfig{}, fmt.Errorf("admin password is not configured (admin.password or PORTAL_ADMIN_PASSWORD)")
	}
	if len(ac.SessionSecret) < 32 {
		return AdminConfig{}, fmt.Errorf("session secret must be at least 32 bytes (session.secret or PORTAL_SESSION_SECRET)")
	}
	log.Info().Msg("admin gate configured")
	return ac, nil
}

func BuildMailerConfig(cfg Getter, log *zerolog.Logger) (MailerConfig, error) {
	mc := MailerConfig{
		Mode: strings.ToLower(cfg.GetString("mailer.mode")),
		SMTP: mailer.Config{
			Host:     cfg.GetString("mailer.host"),
			Port:     cfg.GetInt("mailer.port"),
			Username: cfg.GetString("mailer.username"),
			Password: secret(cfg, "mailer.password", "PORTAL_MAILER_PASSWORD"),
			From:     cfg.GetString("mailer.from"),
		},
	}
	if mc.Mode == "" {
		mc.Mode = MailModeDirect
	}
	if mc.Mode != MailModeDirect && mc.Mode != MailModeQueue {
		return MailerConfig{}, fmt.Errorf("unknown mailer.mode %q", mc.Mode)
	}
	if mc.SMTP.Host == "" {
		log.Warn().Msg("mailer.host not set, confirmation emails are disabled")
	}
	return mc, nil
}

func BuildRabbitConfig(cfg Getter, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      secret(cfg, "rabbit.url", "PORTAL_RABBIT_URL"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" || rc.Exchange == "" || rc.Queue == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.url, rabbit.exchange and rabbit.queue are required in queue mode")
	}
	log.Info().Msgf("RabbitMQ config loaded (exchange=%s, queue=%s)", rc.Exchange, rc.Queue)
	return rc, nil
}

// secret prefers the environment over the config file.
func secret(cfg Getter, key, env string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return cfg.GetString(key)
}
