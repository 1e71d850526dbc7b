package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vidroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 3000,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 20,
	}
	staticDir = configVar[string]{
		envKey:       "SERVER_STATIC_DIR",
		flagKey:      "static-dir",
		defaultValue: "./public",
	}
	redisAddr = configVar[string]{
		envKey:       "REDIS_ADDR",
		flagKey:      "redis-addr",
		defaultValue: "",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in a room")
	pflag.String(staticDir.flagKey, staticDir.defaultValue, "Directory with the static client files")
	pflag.String(redisAddr.flagKey, redisAddr.defaultValue, "Redis address for session bindings (empty for in-memory)")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(staticDir.flagKey, staticDir.envKey)
	viper.BindEnv(redisAddr.flagKey, redisAddr.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(staticDir.flagKey, staticDir.defaultValue)
	viper.SetDefault(redisAddr.flagKey, redisAddr.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		MembersLimit:  viper.GetInt(membersLimit.flagKey),
		StaticDir:     viper.GetString(staticDir.flagKey),
		RedisAddr:     viper.GetString(redisAddr.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
