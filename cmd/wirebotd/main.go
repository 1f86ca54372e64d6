// Command wirebotd runs an example echo bot on top of the wirebot
// Inbound Service: every text message is echoed back prefixed with its
// sender.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"

	wirebot "github.com/dsonbaker/wirebot"
)

type echoHandler struct {
	log zerolog.Logger
}

func (h echoHandler) Handle(botID string, event wirebot.Event, client *wirebot.BotClient) {
	switch e := event.(type) {
	case wirebot.Message:
		h.log.Info().Str("bot_id", botID).Str("from", e.From).Msg("received message")
		if err := client.SendMessage(fmt.Sprintf("%s said: %s", e.From, e.Text)); err != nil {
			h.log.Error().Err(err).Str("bot_id", botID).Msg("failed to queue echo reply")
		}
	case wirebot.MemberJoin:
		h.log.Info().Str("bot_id", botID).Strs("joined", e.Joined).Msg("members joined")
	case wirebot.MemberLeave:
		h.log.Info().Str("bot_id", botID).Strs("left", e.Left).Msg("members left")
	case wirebot.Rename:
		h.log.Info().Str("bot_id", botID).Str("name", e.Name).Msg("conversation renamed")
	}
}

func getEnv(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		fmt.Printf("found %s=%s in env\n", name, v)
		return v
	}
	fmt.Printf("cannot find %s, using default %s\n", name, fallback)
	return fallback
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	exzerolog.SetupDefaults(&log)

	dataDir := getEnv("DATA_DIR", "./bot_data")
	addr := getEnv("ADDRESS", "0.0.0.0:6000")
	keyPath := getEnv("KEY_PATH", "key.pem")
	certPath := getEnv("CERT_PATH", "cert.pem")
	auth := getEnv("AUTH", "0xdeadbeef")

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", dataDir).Msg("failed to create data directory")
	}

	cfg := wirebot.Config{
		StoreRoot:     dataDir,
		ListenAddress: addr,
		CertPath:      certPath,
		KeyPath:       keyPath,
		AuthToken:     auth,
	}

	svc := wirebot.NewService(cfg, echoHandler{log: log}, log)

	go func() {
		if err := svc.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("inbound service stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
