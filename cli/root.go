package cli

import (
	"os"

	"chatdash/config"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// options is shared by every subcommand. cfg is populated before RunE runs.
type options struct {
	logLevel string
	envFile  string
	cfg      *config.Config
}

func (o *options) init() error {
	if err := godotenv.Load(o.envFile); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	o.cfg = cfg
	return nil
}

// NewRootCommand builds the chatdash command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "chatdash",
		Short: "Chat dashboard: chatrooms, sign-in and simulated replies.",
		Long: `chatdash keeps users and chatrooms in a JSON record store and runs
in-memory message sessions with a simulated responder.

  chatdash serve                      # HTTP API + Socket.IO server
  chatdash register --mobile 9876543210 --first Ada --last Lovelace --country +44
  chatdash signin 9876543210
  chatdash rooms create "Weekend plans"
  chatdash chat <roomId>              # interactive session`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "", "The log level (debug, info, warn, error). Overrides LOG_LEVEL.")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment.")

	root.AddCommand(
		newServeCommand(opts),
		newRegisterCommand(opts),
		newSignInCommand(opts),
		newSignOutCommand(opts),
		newWhoAmICommand(opts),
		newRoomsCommand(opts),
		newChatCommand(opts),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
