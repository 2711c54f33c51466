package commands

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appLogger "github.com/FACorreiaa/go-portal-shell/app/logger"
	"github.com/FACorreiaa/go-portal-shell/config"
)

var (
	cfg    config.Config
	logger *slog.Logger

	env         string
	storageFlag string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "portal-shell",
		Short:         "Portal shell: session, navigation guard and lazy feature modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Println("Warning: .env file not found or error loading:", err)
			}

			var err error
			cfg, err = config.InitConfig()
			if err != nil {
				return err
			}
			if storageFlag != "" {
				cfg.Storage.Driver = storageFlag
				if err = cfg.Validate(); err != nil {
					return err
				}
			}

			if env == "" {
				env = os.Getenv("APP_ENV")
			}
			if env == "" {
				env = cfg.Mode
			}
			logger = appLogger.New(os.Stderr, env)
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&env, "env", "", "environment: development or production (default $APP_ENV, then config mode)")
	root.PersistentFlags().StringVar(&storageFlag, "storage", "", "override storage driver: sqlite, postgres, memory or none")

	root.AddCommand(serveCmd(), routesCmd(), sessionCmd())
	err := root.Execute()
	if err != nil {
		root.PrintErrln("Error:", err)
	}
	return err
}
