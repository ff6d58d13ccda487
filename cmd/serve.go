package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/trendmerge/internal/publish"
	"github.com/KaramelBytes/trendmerge/internal/server"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	srvAddr      string
	srvNoPublish bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ListenAddr = srvAddr
		}
		if err := c.Validate(); err != nil {
			return err
		}
		log, closeLog := newLogger(c)
		defer closeLog()
		if c.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		st, err := store.New(c.ExportsDir)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var pubs []publish.Publisher
		if !srvNoPublish {
			var errs []error
			pubs, errs = publish.FromConfig(ctx, c)
			for _, err := range errs {
				log.Warn("publish target disabled", "err", err)
			}
		}
		srv, err := server.New(server.Options{Config: c, Log: log, Store: st, Publishers: pubs})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on %s (exports in %s)\n", c.ListenAddr, st.Dir())
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", ":5000", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&srvNoPublish, "no-publish", false, "do not push exports to remote targets")
}
