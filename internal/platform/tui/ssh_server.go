package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":2222").
	Address string

	// HostKeyPath is the path to the host key file. It is generated on first
	// start when missing.
	HostKeyPath string

	// DefaultGame is watched when the client passes no command.
	DefaultGame string

	// Scenario is the simulated network every session runs over. Each
	// session gets its own seed.
	Scenario sim.Scenario

	// Configure returns the engine constants for a game. Nil uses the game's
	// defaults.
	Configure func(registry.Game) lockstep.Config

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds how long Serve waits for sessions to end.
	ShutdownTimeout time.Duration

	Logger *log.Logger
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:         ":2222",
		HostKeyPath:     filepath.Join(".ssh", "lockstep_ed25519"),
		DefaultGame:     "tracker",
		Scenario:        sim.DefaultScenario(),
		IdleTimeout:     30 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// SSHServer lets anyone with an SSH client watch a simulated session:
// `ssh -p 2222 host pong`.
type SSHServer struct {
	config SSHServerConfig
	server *ssh.Server
	logger *log.Logger
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig) (*SSHServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "lockstep-ssh",
		})
	}
	if cfg.HostKeyPath == "" {
		return nil, errors.New("tui: host key path is required")
	}
	if _, err := registry.Create(cfg.DefaultGame); err != nil {
		return nil, fmt.Errorf("tui: default game: %w", err)
	}
	if err := cfg.Scenario.Validate(); err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	if mkdirErr := os.MkdirAll(filepath.Dir(cfg.HostKeyPath), 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	srv := &SSHServer{
		config: cfg,
		logger: logger,
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.gameMiddleware,
			srv.loggingMiddleware,
		),
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.IdleTimeout))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// gameFor resolves the game named by an SSH command.
func (s *SSHServer) gameFor(command []string) (registry.Game, error) {
	id := s.config.DefaultGame
	if len(command) > 0 {
		id = strings.TrimSpace(command[0])
	}
	return registry.Create(id)
}

// newWatch starts a fresh session of g for one viewer.
func (s *SSHServer) newWatch(g registry.Game, seed uint64, width, height int) (WatchModel, error) {
	cfg := g.DefaultConfig()
	if s.config.Configure != nil {
		cfg = s.config.Configure(g)
	}
	sc := s.config.Scenario
	sc.Seed = seed
	v, err := g.Watch(cfg, sc, lockstep.WithLogger(s.logger.With("game", g.ID())))
	if err != nil {
		return WatchModel{}, err
	}
	return NewWatchModel(g.Title(), v, width, height, 0), nil
}

// gameMiddleware rejects unknown games before a terminal program is started.
func (s *SSHServer) gameMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		if _, err := s.gameFor(sshSession.Command()); err != nil {
			games := make([]string, 0)
			for _, info := range registry.List() {
				games = append(games, info.ID)
			}
			wish.Fatalln(sshSession, fmt.Sprintf("%v (available: %s)", err, strings.Join(games, ", ")))
			return
		}
		next(sshSession)
	}
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, ok := sshSession.Pty()
	if !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		return nil, nil
	}

	g, err := s.gameFor(sshSession.Command())
	if err != nil {
		return nil, nil
	}
	model, err := s.newWatch(g, s.config.Scenario.Seed^uint64(time.Now().UnixNano()), pty.Window.Width, pty.Window.Height)
	if err != nil {
		s.logger.Error("cannot start session", "game", g.ID(), "error", err)
		return nil, nil
	}

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
			"command", strings.Join(sshSession.Command(), " "),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// Serve runs the server until ctx is cancelled, then shuts it down.
func (s *SSHServer) Serve(ctx context.Context) error {
	s.logger.Info("starting SSH server", "address", s.config.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
