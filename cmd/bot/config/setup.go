package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const configName = "plexcord"

// ErrIncomplete is returned when a required value is missing.
var ErrIncomplete = errors.New("incomplete configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault(EnvMonitoringPort, "8080")
	v.SetDefault(EnvDBDriver, "sqlite")
	v.SetDefault(EnvDataDir, "data")
	v.SetDefault(EnvDashboardUser, "admin")
	v.SetDefault(EnvAPIRateLimit, 5.0)
	v.SetDefault(EnvTokenTTL, "12h")
	v.SetDefault(EnvCloseGrace, "10s")
	v.SetDefault(EnvBridgeTimeout, "30s")
	v.SetDefault(EnvInteractionTimeout, "2m")
	v.SetDefault(EnvBridgeWorkers, 1)
	v.SetDefault(EnvInviteTTL, "0s")
	v.SetDefault(EnvInviteSweepInterval, "1h")
	v.SetDefault(EnvAMQPExchange, "plexcord.tickets")
	v.SetDefault(EnvCaptchaLength, 6)
	v.SetDefault(EnvCaptchaTTL, "5m")
}

// Parse reads the configuration from the environment and an optional
// plexcord.yaml in the working directory or /etc/plexcord.
func Parse(l *slog.Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/plexcord")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		l.Debug("No config file found, using environment only")
	} else {
		l.Debug("Loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	return load(l, v)
}

func load(l *slog.Logger, v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	libraries, err := parseLibraries(v.GetString(EnvPlexLibraries))
	if err != nil {
		return nil, err
	}

	c := &Config{
		BotToken:              v.GetString(EnvBotToken),
		ApplicationId:         v.GetString(EnvApplicationId),
		GuildId:               v.GetString(EnvGuildId),
		MonitoringPort:        v.GetString(EnvMonitoringPort),
		DBDriver:              strings.ToLower(v.GetString(EnvDBDriver)),
		DataDir:               v.GetString(EnvDataDir),
		MongoUri:              v.GetString(EnvMongoUri),
		APISecret:             v.GetString(EnvAPISecret),
		DashboardUser:         v.GetString(EnvDashboardUser),
		DashboardPassword:     v.GetString(EnvDashboardPassword),
		APIRateLimit:          v.GetFloat64(EnvAPIRateLimit),
		TokenTTL:              v.GetDuration(EnvTokenTTL),
		CloseGrace:            v.GetDuration(EnvCloseGrace),
		BridgeTimeout:         v.GetDuration(EnvBridgeTimeout),
		InteractionTimeout:    v.GetDuration(EnvInteractionTimeout),
		BridgeWorkers:         v.GetInt(EnvBridgeWorkers),
		PlexURL:               v.GetString(EnvPlexURL),
		PlexToken:             v.GetString(EnvPlexToken),
		PlexServerId:          v.GetString(EnvPlexServerId),
		PlexRoleId:            v.GetString(EnvPlexRoleId),
		PlexLibraries:         libraries,
		InviteTTL:             v.GetDuration(EnvInviteTTL),
		InviteSweepInterval:   v.GetDuration(EnvInviteSweepInterval),
		AMQPUrl:               v.GetString(EnvAMQPUrl),
		AMQPExchange:          v.GetString(EnvAMQPExchange),
		DonationChannelId:     v.GetString(EnvDonationChannelId),
		KofiVerificationToken: v.GetString(EnvKofiVerificationToken),
		VerifiedRoleId:        v.GetString(EnvVerifiedRoleId),
		CaptchaLength:         v.GetInt(EnvCaptchaLength),
		CaptchaTTL:            v.GetDuration(EnvCaptchaTTL),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	if !c.PlexEnabled() {
		l.Info("Plex invites disabled, set PLEX_TOKEN, PLEX_SERVER_ID and PLEX_ROLE_ID to enable them")
	}
	if c.APISecret == "" || c.DashboardPassword == "" {
		l.Warn("Dashboard credentials not set, the ticket API will reject every login")
	}

	l.Debug("All required configuration values have been provided")
	return c, nil
}

func (c *Config) validate() error {
	missing := make([]string, 0)
	if c.BotToken == "" {
		missing = append(missing, EnvBotToken)
	}
	if c.ApplicationId == "" {
		missing = append(missing, EnvApplicationId)
	}
	if c.GuildId == "" {
		missing = append(missing, EnvGuildId)
	}
	if c.DBDriver == "mongodb" && c.MongoUri == "" {
		missing = append(missing, EnvMongoUri)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	switch c.DBDriver {
	case "sqlite", "mongodb":
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrIncomplete, EnvDBDriver, c.DBDriver)
	}

	if c.BridgeWorkers < 1 {
		c.BridgeWorkers = 1
	}
	if c.BridgeTimeout <= 0 || c.InteractionTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrIncomplete)
	}
	if c.VerificationEnabled() && (c.CaptchaLength < 1 || c.CaptchaLength > 10) {
		return fmt.Errorf("%w: %s must be between 1 and 10", ErrIncomplete, EnvCaptchaLength)
	}
	if c.CloseGrace < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrIncomplete, EnvCloseGrace)
	}
	return nil
}

// parseLibraries parses a comma separated list of library section IDs.
func parseLibraries(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", EnvPlexLibraries, p, err)
		}
		out = append(out, id)
	}
	return out, nil
}
