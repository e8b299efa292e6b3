package config

import "time"

const (
	// AppName is the name of the application.
	AppName = "plexcord"

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	// EnvGuildId is the environment variable for the guild the bot serves.
	EnvGuildId = `GUILD_ID`

	// EnvMongoUri is the environment variable for the MongoDB URI.
	EnvMongoUri = `MONGO_URI`

	// EnvMonitoringPort is the environment variable for the monitoring port.
	EnvMonitoringPort = `MONITORING_PORT`

	EnvDBDriver = `DB_DRIVER`
	EnvDataDir  = `DATA_DIR`

	EnvAPISecret         = `API_SECRET`
	EnvDashboardUser     = `DASHBOARD_USER`
	EnvDashboardPassword = `DASHBOARD_PASSWORD`
	EnvAPIRateLimit      = `API_RATE_LIMIT`
	EnvTokenTTL          = `API_TOKEN_TTL`

	EnvCloseGrace         = `CLOSE_GRACE`
	EnvBridgeTimeout      = `BRIDGE_TIMEOUT`
	EnvInteractionTimeout = `INTERACTION_TIMEOUT`
	EnvBridgeWorkers      = `BRIDGE_WORKERS`

	EnvPlexURL             = `PLEX_URL`
	EnvPlexToken           = `PLEX_TOKEN`
	EnvPlexServerId        = `PLEX_SERVER_ID`
	EnvPlexRoleId          = `PLEX_ROLE_ID`
	EnvPlexLibraries       = `PLEX_LIBRARIES`
	EnvInviteTTL           = `INVITE_TTL`
	EnvInviteSweepInterval = `INVITE_SWEEP_INTERVAL`

	EnvAMQPUrl      = `AMQP_URL`
	EnvAMQPExchange = `AMQP_EXCHANGE`

	EnvDonationChannelId     = `DONATION_CHANNEL_ID`
	EnvKofiVerificationToken = `KOFI_VERIFICATION_TOKEN`

	EnvVerifiedRoleId = `VERIFIED_ROLE_ID`
	EnvCaptchaLength  = `CAPTCHA_LENGTH`
	EnvCaptchaTTL     = `CAPTCHA_TTL`
)

// Config is the runtime configuration of the bot.
type Config struct {
	// BotToken is the token for the bot.
	BotToken string

	// ApplicationId is the ID of the application.
	ApplicationId string

	// GuildId is the guild the bot serves.
	GuildId string

	// MonitoringPort is the port for the API and monitoring server.
	MonitoringPort string

	DBDriver string
	DataDir  string
	MongoUri string

	APISecret         string
	DashboardUser     string
	DashboardPassword string

	// APIRateLimit is the number of API requests per second allowed per client.
	APIRateLimit float64
	TokenTTL     time.Duration

	CloseGrace         time.Duration
	BridgeTimeout      time.Duration
	InteractionTimeout time.Duration
	BridgeWorkers      int

	PlexURL             string
	PlexToken           string
	PlexServerId        string
	PlexRoleId          string
	PlexLibraries       []int
	InviteTTL           time.Duration
	InviteSweepInterval time.Duration

	AMQPUrl      string
	AMQPExchange string

	DonationChannelId     string
	KofiVerificationToken string

	// VerifiedRoleId is granted to members who solve the CAPTCHA.
	VerifiedRoleId string
	CaptchaLength  int
	CaptchaTTL     time.Duration
}

// PlexEnabled reports whether Plex invites are configured.
func (c *Config) PlexEnabled() bool {
	return c.PlexToken != "" && c.PlexServerId != "" && c.PlexRoleId != ""
}

// VerificationEnabled reports whether new members have to solve a CAPTCHA.
func (c *Config) VerificationEnabled() bool {
	return c.VerifiedRoleId != ""
}
