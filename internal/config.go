package internal

import "time"

type Config struct {
	Host                 string        `env:"HOST"`
	ChatPort             int           `env:"CHAT_PORT,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	UploadDir            string        `env:"UPLOAD_DIR,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	MaxContentLength     int64         `env:"MAX_CONTENT_LENGTH,required=true"`
}
