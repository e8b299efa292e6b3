package monitoring

import (
	"fmt"

	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalDiscordEvents is the total number of events.
	TotalDiscordEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_total_discord_events", config.AppName),
			Help: "Total number of events",
		},
		[]string{"event"},
	)

	// HttpTotalRequests is the total number of http requests.
	HttpTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_total_requests", config.AppName),
			Help: "Total number of http requests",
		},
		[]string{"path", "method", "status_code"},
	)

	// HttpRequestDuration is the duration of the http request.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_http_request_duration", config.AppName),
			Help: "Duration of the http request",
		},
		[]string{"path", "method", "status_code"},
	)

	TotalDiscordGuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_total_discord_guilds", config.AppName),
			Help: "Total number of discord guilds",
		},
	)

	// DiscordInteractionDuration is the duration of an interaction, labelled
	// by command name or custom ID kind.
	DiscordInteractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_discord_interaction_duration", config.AppName),
			Help: "Duration of the discord interaction",
		},
		[]string{"interaction"},
	)

	// HttpRateLimited is the number of requests rejected by the rate limiter.
	HttpRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_rate_limited_total", config.AppName),
			Help: "Total number of rate limited http requests",
		},
	)

	// Donations is the number of Ko-fi notifications received, by type.
	Donations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_donations_total", config.AppName),
			Help: "Total number of donation notifications",
		},
		[]string{"type"},
	)
)
