package main

import "time"

// Config is loaded from the environment at startup.
type Config struct {
	MongoURI     string        `env:"MONGODB_URI,required=true"`
	JWTSecret    string        `env:"JWT_SECRET,required=true"`
	Port         int           `env:"PORT,default=4000"`
	LogLevel     string        `env:"LOG_LEVEL,default=info"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,default=24h"`
	RateLimitRPM int           `env:"RATE_LIMIT_RPM,default=10"`

	WSWriteWait      time.Duration `env:"WS_WRITE_WAIT,default=10s"`
	WSPongWait       time.Duration `env:"WS_PONG_WAIT,default=60s"`
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE,default=4096"`
}

func (c Config) wsConfig() wsConfig {
	return wsConfig{
		WriteWait:      c.WSWriteWait,
		PongWait:       c.WSPongWait,
		PingInterval:   c.WSPingInterval,
		MaxMessageSize: c.WSMaxMessageSize,
	}
}
