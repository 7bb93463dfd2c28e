package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tunnelguard/tunnelguard/client/internal"
	"github.com/tunnelguard/tunnelguard/client/internal/controlapi"
	"github.com/tunnelguard/tunnelguard/client/internal/event"
	"github.com/tunnelguard/tunnelguard/client/internal/resolver"
	"github.com/tunnelguard/tunnelguard/client/internal/session"
	"github.com/tunnelguard/tunnelguard/client/internal/stats"
	"github.com/tunnelguard/tunnelguard/client/internal/supervisor"
	"github.com/tunnelguard/tunnelguard/util"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "connect the client and keep the tunnel alive",
	RunE:  upFunc,
}

func upFunc(cmd *cobra.Command, args []string) error {
	SetFlagsFromEnvVars(rootCmd)
	cmd.SetOut(cmd.OutOrStdout())

	if err := util.InitLog(logLevel, logFile); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	SetupCloseHandler(ctx, cancel)

	config, err := internal.ReadConfig(configPath)
	if err != nil {
		return err
	}
	list, err := config.RemoteList()
	if err != nil {
		return err
	}

	opts := internal.NewClientOptions(config, list)
	notifier := event.NewNotifier()
	recorder := stats.NewOtelRecorder()
	preRes := resolver.New(list, config.Nameserver)

	sup := supervisor.New(opts, session.NewOpenVPN, notifier, recorder, preRes)

	apiSrv := controlapi.NewServer(sup, notifier)
	if config.ControlAddr != "" {
		if err := apiSrv.Start(config.ControlAddr); err != nil {
			sup.Stop()
			<-sup.Done()
			return err
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutdownCancel()
			if err := apiSrv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("control api shutdown: %v", err)
			}
		}()
	}

	sup.Start()

	go func() {
		<-ctx.Done()
		sup.GracefulStop()
	}()

	<-sup.Done()
	log.Info("client stopped")
	return nil
}
