package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/multiplayer"
	"github.com/vovakirdan/lockstep/internal/platform/tui"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/transport/ws"
)

var (
	flagAddr       string
	flagSSHAddr    string
	flagNoSSH      bool
	flagHostKey    string
	flagMaxClients int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve arenas over websockets",
	Long: `Start the arena server. Clients join an arena with a websocket at
/arena/<name>?game=<world>; the arena is created on first join and stopped
after it has been empty for server.empty_timeout_sec.

An SSH server is started alongside it so anyone can watch a simulated
session of any world with a plain SSH client.

Endpoints:
  GET /arena/{name}   - Join (websocket, binary frames; ?reliable=1 for ordered links)
  GET /healthz        - Liveness
  GET /stats          - Arena metrics as JSON

Examples:
  lockstep serve
  lockstep serve --addr :9000 --no-ssh
  lockstep serve --ssh :2222 --host-key ./host_ed25519

Users can watch with:
  ssh localhost -p 2222 pong`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Websocket listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH listen address (default: server.ssh_addr)")
	serveCmd.Flags().BoolVar(&flagNoSSH, "no-ssh", false, "Do not start the SSH server")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to SSH host key (generated if missing)")
	serveCmd.Flags().IntVar(&flagMaxClients, "max-clients", 0, "Clients per arena (default: server.max_clients)")
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagSSHAddr != "" {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if flagNoSSH {
		cfg.Server.SSHAddr = ""
	}
	if flagHostKey != "" {
		cfg.Server.HostKeyPath = flagHostKey
	}
	if flagMaxClients > 0 {
		cfg.Server.MaxClients = flagMaxClients
	}
	if !registry.Exists(cfg.Server.DefaultGame) {
		fatalf("unknown default world %q", cfg.Server.DefaultGame)
	}

	logger, closer, err := newLogger(cfg, "lockstep", os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer closer.Close()

	factory := registry.RoomFactory(engineFor(cfg),
		multiplayer.WithArenaLogger(logger.WithPrefix("arena")),
		multiplayer.WithMaxClients(cfg.Server.MaxClients),
	)
	coord := multiplayer.NewCoordinator(multiplayer.CoordinatorConfig{
		EmptyTimeout:  cfg.Server.EmptyTimeout(),
		CleanupPeriod: cfg.Server.CleanupPeriod(),
		DefaultGame:   cfg.Server.DefaultGame,
	}, factory, logger.WithPrefix("coordinator"))
	coord.Start()
	defer coord.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           ws.NewServer(coord, logger.WithPrefix("ws"), cfg.Server.SendQueue).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting websocket server", "address", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("websocket server: %w", err)
		}
	}()

	sshDone := make(chan struct{})
	if cfg.Server.SSHAddr != "" {
		sshSrv, err := tui.NewSSHServer(tui.SSHServerConfig{
			Address:         cfg.Server.SSHAddr,
			HostKeyPath:     cfg.Server.HostKeyPath,
			DefaultGame:     cfg.Server.DefaultGame,
			Scenario:        cfg.Scenario(),
			Configure:       engineFor(cfg),
			IdleTimeout:     30 * time.Minute,
			ShutdownTimeout: cfg.Server.ShutdownTimeout(),
			Logger:          logger.WithPrefix("ssh"),
		})
		if err != nil {
			fatalf("%v", err)
		}
		go func() {
			defer close(sshDone)
			if err := sshSrv.Serve(ctx); err != nil {
				errCh <- fmt.Errorf("ssh server: %w", err)
			}
		}()
	} else {
		close(sshDone)
	}

	fmt.Printf("Arenas on ws://localhost%s/arena/<name>\n", cfg.Server.Addr)
	if cfg.Server.SSHAddr != "" {
		fmt.Printf("Watch with: ssh localhost -p %s <world>\n", portOf(cfg.Server.SSHAddr))
	}
	fmt.Println("Press Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown", "error", err)
	}
	<-sshDone

	if runErr != nil {
		fatalf("%v", runErr)
	}
}

// portOf returns the port of a host:port address.
func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return addr
}
