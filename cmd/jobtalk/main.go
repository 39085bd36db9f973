package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jobtalk/internal/app"
	"jobtalk/internal/config"
)

func main() {
	role := flag.String("role", "", "participant role: applicant or recruiter (overrides JOBTALK_ROLE)")
	envFile := flag.String("env", "", "path to a dotenv file loaded before the environment")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *role != "" {
		cfg.Role = *role
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	application, err := app.New(cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble application")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = application.Start(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go repl(application, logger)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	application.Stop()
}

// repl is a minimal line-oriented driver for exercising the engine from a
// terminal. Anything not starting with a slash is sent to the active room.
func repl(application *app.Application, logger zerolog.Logger) {
	core := application.Controller()
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/rooms":
			for _, room := range core.Rooms() {
				marker := " "
				if room.Selected {
					marker = "*"
				}
				fmt.Printf("%s %s  %s (%s)  unread=%d  %q\n",
					marker, room.ID, room.CounterpartyName, room.Job.Title, room.Unread, room.Preview)
			}

		case strings.HasPrefix(line, "/select "):
			roomID := strings.TrimSpace(strings.TrimPrefix(line, "/select"))
			if err := core.Select(ctx, roomID); err != nil {
				logger.Error().Err(err).Msg("select failed")
				continue
			}
			for _, msg := range core.Messages(roomID) {
				fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format(time.Kitchen), msg.SenderRole, msg.Text)
			}

		case line == "/older":
			n, err := core.LoadOlder(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("load older failed")
				continue
			}
			fmt.Printf("loaded %d older messages\n", n)

		case line == "/close":
			core.CloseRoom(ctx)

		case line == "/replies":
			replies, err := core.SmartReplies(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("smart replies unavailable")
				continue
			}
			for i, reply := range replies {
				fmt.Printf("%d: %s\n", i+1, reply)
			}

		case strings.HasPrefix(line, "/originate "):
			recruiter := application.Recruiter()
			if recruiter == nil {
				logger.Error().Msg("only recruiters originate rooms")
				continue
			}
			fields := strings.Fields(strings.TrimPrefix(line, "/originate"))
			if len(fields) != 2 {
				fmt.Println("usage: /originate <jobID> <counterpartyID>")
				continue
			}
			roomID, err := recruiter.OriginateRoom(ctx, fields[0], fields[1])
			if err != nil {
				logger.Error().Err(err).Msg("originate failed")
				continue
			}
			fmt.Printf("room %s ready\n", roomID)

		case line == "/state":
			fmt.Printf("connection: %s\n", core.ConnState())

		default:
			core.InputChanged()
			if _, err := core.SendMessage(line); err != nil {
				logger.Error().Err(err).Msg("send failed")
				continue
			}
			core.InputCleared()
		}
	}
}
