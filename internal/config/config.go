package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"tjhsst/ion-verifier/internal/roles"
)

// Config holds every recognized option. All required fields are fatal at
// startup when absent.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	Port   int    `envconfig:"PORT" default:"8080"`

	// Externally reachable base URL of this service, used by the verify
	// button link. No trailing slash.
	BaseURL string `envconfig:"BASE_URL" required:"true"`

	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`

	IONClientID     string `envconfig:"ION_CLIENT_ID" required:"true"`
	IONClientSecret string `envconfig:"ION_CLIENT_SECRET" required:"true"`
	IONRedirectURI  string `envconfig:"ION_REDIRECT_URI" required:"true"`

	GuildID         string `envconfig:"GUILD_ID" required:"true"`
	VerifyChannelID string `envconfig:"VERIFY_CHANNEL_ID" required:"true"`

	// Role stripped from the member once verification succeeds.
	RoleToRemove string `envconfig:"ROLE_TO_REMOVE_NAME"`

	// JSON object mapping year tokens / categorical keys to role names,
	// e.g. {"2025": "Class of 2025", "Default": "Verified"}.
	ClassYearRolesJSON string `envconfig:"CLASS_YEAR_ROLES_JSON" default:"{}"`

	// Pending verifications are evicted after this TTL.
	PendingTTL time.Duration `envconfig:"PENDING_TTL" default:"10m"`

	// When set, pending verifications live in Redis instead of process
	// memory, allowing multi-process deployments.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// RoleTable parses CLASS_YEAR_ROLES_JSON into the role mapping table.
func (c *Config) RoleTable() (roles.Table, error) {
	table := roles.Table{}
	if err := json.Unmarshal([]byte(c.ClassYearRolesJSON), &table); err != nil {
		return nil, fmt.Errorf("malformed CLASS_YEAR_ROLES_JSON: %w", err)
	}
	return table, nil
}
