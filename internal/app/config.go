package app

import (
	"strings"
	"time"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/utils"
)

type Config struct {
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Certificate validity; zero means certificates never expire.
	CertificateValidity time.Duration

	SweepInterval time.Duration

	RedisAddr    string
	EventChannel string

	AllowOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	certValidityDays := utils.GetEnvAsInt("CERTIFICATE_VALIDITY_DAYS", 0, log)
	sweepIntervalSeconds := utils.GetEnvAsInt("ATTEMPT_SWEEP_INTERVAL", 30, log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	eventChannel := utils.GetEnv("COURSE_EVENT_CHANNEL", "course.completed", log)

	var origins []string
	for _, origin := range strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	return Config{
		JWTSecretKey:        jwtSecretKey,
		AccessTokenTTL:      time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL:     time.Duration(refreshTokenTTLSeconds) * time.Second,
		CertificateValidity: time.Duration(certValidityDays) * 24 * time.Hour,
		SweepInterval:       time.Duration(sweepIntervalSeconds) * time.Second,
		RedisAddr:           redisAddr,
		EventChannel:        eventChannel,
		AllowOrigins:        origins,
	}
}
