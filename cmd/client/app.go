package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spinwheel/lucky-wheel/client"
	"github.com/spinwheel/lucky-wheel/identity"
	"github.com/spinwheel/lucky-wheel/model"
)

// Headless room participant: joins the shared room, mirrors every event to
// the log and optionally spins or edits items. Acts as the reference
// consumer of the client callback contract.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		serverURL = fs.StringP("server-url", "s", "ws://localhost:8080", "relay server url")
		roomID    = fs.StringP("room", "r", model.DefaultRoomID, "room id to join")
		dataDir   = fs.StringP("data-dir", "d", defaultDataDir(), "identity storage directory")
		logLevel  = fs.StringP("log-level", "l", "info", "log level")
		spin      = fs.Bool("spin", false, "spin the wheel once after joining (operator only)")
		items     = fs.String("items", "", "comma-separated item list to push after joining")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	me, err := identity.Bootstrap(identity.NewFileStore(*dataDir), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap identity")
	}
	logger.Info().Str("name", me.Name).Bool("isHost", me.IsHost).Msg("identity resolved")

	var cl *client.Client
	cl = client.New(client.Config{
		URL:      *serverURL,
		RoomID:   *roomID,
		Identity: me,
		Logger:   &logger,
		Callbacks: client.Callbacks{
			OnRoomSnapshot: func(data model.RoomData) {
				logger.Info().
					Strs("items", data.Items).
					Float64("rotation", data.CurrentRotation).
					Str("operator", data.CurrentOperator).
					Msg("room snapshot")
				go runIntents(cl, *spin, *items, &logger)
			},
			OnParticipantJoined: func(name string) {
				logger.Info().Str("name", name).Msg("participant joined")
			},
			OnParticipantLeft: func(name string) {
				logger.Info().Str("name", name).Msg("participant left")
			},
			OnOperatorChanged: func(name string) {
				logger.Info().Str("operator", name).Msg("operator changed")
			},
			OnSpinStarted: func(operator string) {
				logger.Info().Str("operator", operator).Msg("wheel is spinning")
			},
			OnSpinResult: func(rotation float64, result, operator string) {
				logger.Info().
					Float64("rotation", rotation).
					Str("result", result).
					Str("operator", operator).
					Msg("wheel stopped")
			},
			OnItemsUpdated: func(items []string) {
				logger.Info().Strs("items", items).Msg("items updated")
			},
			OnConnectionStateChange: func(state client.ConnState) {
				logger.Info().Stringer("state", state).Msg("connection state")
			},
			OnNotice: func(kind client.NoticeKind, message string) {
				if kind == client.NoticeError {
					logger.Warn().Msg(message)
					return
				}
				logger.Info().Msg(message)
			},
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = cl.Run(ctx); err != nil &&
		!errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("session ended")
	}
	logger.Info().Msg("bye")
}

func runIntents(cl *client.Client, spin bool, items string, logger *zerolog.Logger) {
	if items != "" {
		if err := cl.UpdateItems(strings.Split(items, ",")); err != nil {
			logger.Error().Err(err).Msg("failed to update items")
		}
	}
	if spin {
		// tiny settle delay so the snapshot render lands first
		time.Sleep(200 * time.Millisecond)
		if err := cl.StartSpin(); err != nil {
			logger.Error().Err(err).Msg("failed to spin")
		}
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".lucky-wheel"
	}
	return filepath.Join(dir, "lucky-wheel")
}
