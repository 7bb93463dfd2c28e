package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath string
	logLevel   string
	logFile    string

	rootCmd = &cobra.Command{
		Use:          "tunnelguard",
		Short:        "",
		Long:         "",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultConfigPath := "/etc/tunnelguard/config.json"
	defaultLogFile := "/var/log/tunnelguard/client.log"
	if runtime.GOOS == "windows" {
		defaultConfigPath = os.Getenv("PROGRAMDATA") + "\\Tunnelguard\\" + "config.json"
		defaultLogFile = os.Getenv("PROGRAMDATA") + "\\Tunnelguard\\" + "client.log"
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Tunnelguard config file location")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "sets Tunnelguard log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile, "sets Tunnelguard log path. If console is specified the log will be output to stdout")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetFlagsFromEnvVars reads and updates flag values from environment variables with prefix TG_
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.VisitAll(func(f *pflag.Flag) {
		newEnvVar := flagNameToEnvVar(f.Name, "TG_")
		value, ok := os.LookupEnv(newEnvVar)
		if !ok {
			return
		}

		err := flags.Set(f.Name, value)
		if err != nil {
			log.Infof("unable to configure flag %s using variable %s: %s", f.Name, newEnvVar, err)
		}
	})
}

// flagNameToEnvVar converts flag name to environment var name adding a prefix,
// replacing dashes and making all capital case e.g. setting prefix TG_ and flag log-level produces TG_LOG_LEVEL
func flagNameToEnvVar(cmdFlag string, prefix string) string {
	parsed := strings.ReplaceAll(cmdFlag, "-", "_")
	upper := strings.ToUpper(parsed)
	return prefix + upper
}

// SetupCloseHandler handles SIGTERM and SIGINT by cancelling the context.
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case <-termCh:
			log.Info("shutdown signal received")
		case <-ctx.Done():
		}
		cancel()
	}()
}
