// Command ssr-local runs a local SOCKS5 proxy that tunnels connections
// to a ShadowsocksR server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"ssrlocal/internal/config"
	"ssrlocal/internal/debug"
	"ssrlocal/internal/env"
	"ssrlocal/internal/service"
	"ssrlocal/internal/session"
	"ssrlocal/internal/socks5"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "check-config":
		err = cmdCheckConfig(os.Args[2:])
	case "probe":
		err = cmdProbe(os.Args[2:])
	case "install-service":
		err = cmdInstallService(os.Args[2:])
	case "version":
		fmt.Println("ssr-local", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ssr-local: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ssr-local — local SOCKS5 proxy over a ShadowsocksR tunnel

Usage:
  ssr-local run -c <config.toml>
  ssr-local status -c <config.toml>
  ssr-local check-config -c <config.toml>
  ssr-local probe -c <config.toml> [-count N]
  ssr-local install-service -c <config.toml>
  ssr-local version
  ssr-local help`)
}

func loadConfig(args []string, name string) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("c", "", "path to config.toml")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return nil, fmt.Errorf("-c <config.toml> is required")
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func cmdRun(args []string) error {
	cfg, err := loadConfig(args, "run")
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	environment := env.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutting down")
		cancel()
		environment.Shutdown()
	}()

	listener := &socks5.Listener{
		Addr:   net.JoinHostPort(cfg.ListenHost, fmt.Sprintf("%d", cfg.ListenPort)),
		Logger: logger,
		Handler: func(ctx context.Context, conn net.Conn) {
			session.New(conn, cfg, environment, logger).Run(ctx)
		},
	}
	return listener.ListenAndServe(ctx)
}

func cmdStatus(args []string) error {
	cfg, err := loadConfig(args, "status")
	if err != nil {
		return err
	}
	fmt.Print(debug.Status(cfg))
	return nil
}

func cmdCheckConfig(args []string) error {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	path := fs.String("c", "", "path to config.toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-c <config.toml> is required")
	}
	fmt.Print(debug.CheckConfig(*path))
	return nil
}

func cmdProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	path := fs.String("c", "", "path to config.toml")
	count := fs.Int("count", 4, "number of probes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-c <config.toml> is required")
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	results := debug.Probe(cfg, *count)
	fmt.Print(debug.FormatProbeResults(fmt.Sprintf("%s:%d", cfg.RemoteHost, cfg.RemotePort), results))
	return nil
}

func cmdInstallService(args []string) error {
	fs := flag.NewFlagSet("install-service", flag.ExitOnError)
	path := fs.String("c", "", "path to config.toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-c <config.toml> is required")
	}
	if err := service.InstallBinary("ssr-local"); err != nil {
		return err
	}
	return service.Install(*path)
}
