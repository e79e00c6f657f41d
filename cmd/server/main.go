package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/midi-monitor/backend/internal/registry"
	"github.com/midi-monitor/backend/internal/server"
	"github.com/midi-monitor/backend/internal/source"
)

func main() {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

// app holds the pieces every subcommand needs.
type app struct {
	log *zap.Logger
	db  *sql.DB
	reg *registry.Registry
}

func newRootCmd() *cobra.Command {
	var (
		dbPath string
		debug  bool
	)

	a := &app{}
	root := &cobra.Command{
		Use:   "midi-backend",
		Short: "Stream MIDI events to WebSocket clients",
		Long: `midi-backend decodes events from the first connected MIDI input device,
or plays a synthetic scale when none is present, and broadcasts them to
WebSocket clients as JSON.`,
	}
	root.PersistentFlags().StringVar(&dbPath, "db-path", "data/ports.db", "path to the port history database")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(debug)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := registry.Open(dbPath)
		if err != nil {
			return err
		}

		a.log = log
		a.db = db
		a.reg = registry.New(db)
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.db != nil {
			a.db.Close()
		}
		if a.log != nil {
			_ = a.log.Sync()
		}
	}
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newListPortsCmd(a))
	return root
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the backend service",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := server.New(a.reg, a.log.Named("server"))
			a.log.Info("starting server", zap.String("addr", server.Addr))
			return srv.Run(cmd.Context())
		},
	}
}

// portInfo is the list-ports output row.
type portInfo struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

func newListPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-ports",
		Short: "List known MIDI input ports",
		Long: `List the MIDI input ports connected right now together with every port
the service has ever seen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			connected := make(map[string]bool)
			now := time.Now()
			for _, name := range source.ListPorts() {
				connected[name] = true
				if err := a.reg.RecordSighting(ctx, name, now); err != nil {
					return err
				}
			}

			ports, err := a.reg.List(ctx)
			if err != nil {
				return err
			}

			infos := make([]portInfo, 0, len(ports))
			for _, p := range ports {
				infos = append(infos, portInfo{
					Name:      p.Name,
					Connected: connected[p.Name],
					FirstSeen: p.FirstSeenAt.Format(time.RFC3339),
					LastSeen:  p.LastSeenAt.Format(time.RFC3339),
				})
			}

			jsonB, err := json.MarshalIndent(infos, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(jsonB))
			return nil
		},
	}
}
