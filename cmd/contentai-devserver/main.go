package main

import (
	"flag"
	"os"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/devserver"
	"github.com/rs/zerolog"
)

var (
	flagBindAddr = flag.String("port", ":3001", "Bind address")
	flagSecret   = flag.String("secret", "contentai-dev-secret", "Key for signing session tokens")
	flagLatency  = flag.Duration("latency", 0, "Simulated round trip for every auth call")
)

func main() {
	flag.Parse()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
	backend := auth.NewFakeBackend(*flagSecret, *flagLatency, logger)
	srv := devserver.New(backend)
	defer srv.Close()
	for _, acc := range auth.DemoAccounts {
		logger.Info().Str("email", acc.User.Email).Str("password", acc.Password).Msg("demo account")
	}
	// Block forever
	if err := srv.Run(*flagBindAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to listen and serve")
	}
}
