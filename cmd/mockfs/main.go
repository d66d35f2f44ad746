package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mockfs/mockfs"
)

// version is stamped by the release build.
var version = "dev"

// configFileNames are the server-level config files probed in the working
// directory, in order.
var configFileNames = []string{
	"mockfs.toml",
	"mockfs.yaml",
	"mockfs.yml",
	"mockfs.json",
}

func main() {
	var (
		port          uint16
		folder        string
		disableCORS   bool
		allowedOrigin string
	)

	cmd := &cobra.Command{
		Use:     "mockfs",
		Short:   "Serve HTTP mocks derived from a directory tree",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mockfs.New()

			for _, name := range configFileNames {
				if _, err := os.Stat(name); err == nil {
					s.ConfigFile = name
					break
				}
			}

			if err := s.LoadConfig(); err != nil {
				return err
			}

			// Explicit flags win over the config file
			if cmd.Flags().Changed("port") {
				s.Address = net.JoinHostPort(
					"",
					strconv.Itoa(int(port)),
				)
			}
			if cmd.Flags().Changed("folder") {
				s.MockRoot = folder
			}
			if disableCORS {
				s.CORSEnabled = false
			}
			if cmd.Flags().Changed("allowed-origin") {
				s.AllowedOrigin = allowedOrigin
			}

			return run(s)
		},
	}

	cmd.Flags().Uint16VarP(&port, "port", "p", 4520, "port to listen on")
	cmd.Flags().StringVarP(
		&folder,
		"folder",
		"f",
		"./mocks",
		"mock root directory",
	)
	cmd.Flags().BoolVarP(
		&disableCORS,
		"disable-cors",
		"d",
		false,
		"disable the CORS layer",
	)
	cmd.Flags().StringVarP(
		&allowedOrigin,
		"allowed-origin",
		"a",
		"*",
		"origin allowed by the CORS layer",
	)
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until a signal arrives, then drains. A second signal forces
// immediate termination.
func run(s *mockfs.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// Initial build or bind failure
		return err
	case <-sigCh:
	}

	go func() {
		<-sigCh
		os.Exit(1)
	}()

	ctx, cancel := context.WithTimeout(
		context.Background(),
		s.DrainTimeout,
	)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
