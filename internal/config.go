package internal

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8000"`
	HealthPort        int           `env:"HEALTH_PORT,default=8001"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	DebugPort         int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=30m"`
	DuplicateInterval time.Duration `env:"DUPLICATE_INTERVAL,default=1s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval      time.Duration `env:"PING_INTERVAL,default=30s"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	PresenceInterval  time.Duration `env:"PRESENCE_INTERVAL,default=1m"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) HealthAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HealthPort)
}

// Origins splits ALLOWED_ORIGINS. An empty list only admits same-host browser origins.
func (c Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// Words splits CENSORED_WORDS. An empty list disables moderation.
func (c Config) Words() []string {
	return splitList(c.CensoredWords)
}

// Validate rejects durations that must drive a ticker or a restart loop.
func (c Config) Validate() error {
	intervals := map[string]time.Duration{
		"PRESENCE_INTERVAL": c.PresenceInterval,
		"RESTART_INTERVAL":  c.RestartInterval,
	}
	for name, interval := range intervals {
		if interval <= 0 {
			return fmt.Errorf("%w: %s got %s", errors.ErrInvalidInterval, name, interval)
		}
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT got %q", errors.ErrInvalidCharacter, str)
	}
	return r[0], nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
