package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"healthreach-server/internal/app"
	"healthreach-server/internal/config"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthreach",
		Short: "HealthReach appointment and notification server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real deployments set the environment directly.
			_ = godotenv.Load()
		},
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer application.Close()

	srv := application.Server()
	serverErr := make(chan error, 1)
	go func() {
		log.WithComponent("server").WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.WithComponent("server").Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.WithComponent("server").Info("server stopped")
	return nil
}

func createAdminCmd() *cobra.Command {
	var in app.AdminInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.CollaboratorTimeout)
			defer cancel()

			fbApp, err := app.NewFirebaseApp(ctx, cfg)
			if err != nil {
				return err
			}
			docs, err := app.OpenStore(ctx, cfg, fbApp)
			if err != nil {
				return err
			}
			defer docs.Close()

			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				return fmt.Errorf("initialise firebase auth: %w", err)
			}
			accounts := identity.NewFirebaseAuth(authClient, docs, cfg.Firebase.WebAPIKey, cfg.CollaboratorTimeout)

			user, err := app.CreateAdmin(ctx, accounts, docs, in, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password (at least 8 characters)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}
