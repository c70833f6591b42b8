package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goi "github.com/Jamplesmise/prompt-tool-sub006"
	httpadapter "github.com/Jamplesmise/prompt-tool-sub006/internal/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the engine in server mode, exposing session management,
checkpoint resolution, the natural language command pipeline, an SSE
event stream per session, and Prometheus metrics over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		listen, _ := cmd.Flags().GetString("listen")

		app, err := buildApp(cmd)
		if err != nil {
			fmt.Printf("Error initializing goi: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		if listen == "" {
			listen = app.Config().Server.Listen
		}

		server := httpadapter.NewServer(app.Manager,
			httpadapter.WithBus(app.Bus),
			httpadapter.WithTracker(app.Tracker),
			httpadapter.WithMetricsHandler(app.Metrics.Handler()),
			httpadapter.WithVersion(goi.Version),
		)

		srv := &http.Server{
			Addr:    listen,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting GOI server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("GOI server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}
