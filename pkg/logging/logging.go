package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// KeyError is the log attribute key for errors.
	KeyError = "err"

	// KeyDal is the log attribute key for the data access layer name.
	KeyDal = "dal"

	// KeyGuildID is the log attribute key for a guild ID.
	KeyGuildID = "guild_id"

	// KeyChannelID is the log attribute key for a channel ID.
	KeyChannelID = "channel_id"

	// KeyUserID is the log attribute key for a user ID.
	KeyUserID = "user_id"

	// KeyTicketID is the log attribute key for a ticket number.
	KeyTicketID = "ticket_id"

	// KeyCustomID is the log attribute key for a component custom ID.
	KeyCustomID = "custom_id"

	// KeyCategory is the log attribute key for a ticket category.
	KeyCategory = "category"

	// KeyRequestID is the log attribute key for an HTTP request ID.
	KeyRequestID = "request_id"
)

const (
	envLogLevel     = "LOG_LEVEL"
	envLogFile      = "LOG_FILE"
	envLogMaxSizeMB = "LOG_MAX_SIZE_MB"
)

// Name is the name of the application the logger is built for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// appName is added to every record.
	appName Name

	// Level is the minimum level that is logged.
	Level slog.Level

	// FilePath enables rotated file output when set.
	FilePath string

	// MaxSizeMB is the size a log file reaches before it is rotated.
	MaxSizeMB int

	// Writer overrides stdout. Used in tests.
	Writer io.Writer
}

// NewConfig creates a logging configuration for the given application,
// reading the level and file output settings from the environment.
func NewConfig(appName Name) *Config {
	c := &Config{
		appName:   appName,
		Level:     parseLevel(os.Getenv(envLogLevel)),
		FilePath:  os.Getenv(envLogFile),
		MaxSizeMB: 50,
	}

	if size, err := strconv.Atoi(os.Getenv(envLogMaxSizeMB)); err == nil && size > 0 {
		c.MaxSizeMB = size
	}

	return c
}

// CommonLogger builds the JSON logger used across the application and sets it
// as the slog default.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c == nil {
		return nil, fmt.Errorf("nil logging config")
	}

	var w io.Writer = os.Stdout
	if c.Writer != nil {
		w = c.Writer
	}

	if c.FilePath != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: c.Level == slog.LevelDebug,
		Level:     c.Level,
	})

	l := slog.New(h).With(slog.String("app", string(c.appName)))
	slog.SetDefault(l)
	return l, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
