package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Dias221467/savings-goals/internal/config"
	"github.com/Dias221467/savings-goals/internal/database"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:           "goalctl",
		Short:         "Operate the savings goals store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitLogger(logLevelFlag)
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&logLevelFlag, "log-level", "l", "warn", "Log level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads the server configuration and opens the database it points at.
func connect(ctx context.Context) (*config.Config, *mongo.Database, *time.Location, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, loc, nil
}
