// Package main provides the terminal dashboard for webmonitor.
//
// On a terminal it runs the interactive dashboard. Otherwise it runs
// headless, printing monitor events to stdout. In both modes the
// dashboard can also be served to remote users over SSH.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webmonitor/internal/config"
	"webmonitor/internal/dashboard"
	"webmonitor/internal/logger"
	"webmonitor/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	// stdout belongs to the UI
	logFile, err := logger.InitFile(cfg.Log, cfg.Dashboard.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Failed to open log file: %v", err))
		os.Exit(1)
	}
	defer logFile.Close()

	prefs, err := dashboard.OpenPrefs(cfg.Dashboard.PrefsPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open preferences")
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}
	defer prefs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := dashboard.NewClient(cfg.Dashboard)
	settings := dashboard.LoadSettings(ctx, prefs, dashboard.DefaultSettings(cfg.Dashboard))
	monitor := dashboard.NewMonitor(client, prefs, settings)
	session := dashboard.NewSession(client, prefs)

	log.Info().Str("api", client.BaseURL()).Msg("Starting dashboard")
	monitor.Start(ctx)
	defer monitor.Stop()

	if cfg.Dashboard.SSHAddr != "" {
		srv, err := startSSHServer(cfg.Dashboard, monitor)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start SSH server")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		p := tea.NewProgram(tui.New(ctx, monitor, session, monitor.Events()).WithBell(os.Stderr), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			fmt.Println(color.RedString("Error: %v", err))
		}
		return
	}

	runHeadless(ctx, monitor)
}

// runHeadless prints monitor events until ctx is done.
func runHeadless(ctx context.Context, monitor *dashboard.Monitor) {
	color.Cyan("webmonitor dashboard running in HEADLESS mode")

	events := monitor.Events()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("Shutting down...")
			return
		case e := <-events:
			stamp := e.Time.Format("15:04:05")
			switch e.Kind {
			case dashboard.EventToast:
				fmt.Printf("%s %s\n", stamp, toastColor(e.Level)(e.Message))
			case dashboard.EventAlarm:
				fmt.Printf("\a%s %s\n", stamp, color.New(color.FgRed, color.Bold).Sprint("ALARM: "+e.Message))
			case dashboard.EventSites:
				sum := dashboard.Summarize(monitor.Sites())
				if sum.Down > 0 {
					fmt.Printf("%s %d/%d sites down\n", stamp, sum.Down, sum.Total)
				}
			}
		}
	}
}

func toastColor(level string) func(format string, a ...interface{}) string {
	switch level {
	case dashboard.LevelError:
		return color.RedString
	case dashboard.LevelSuccess:
		return color.GreenString
	default:
		return color.CyanString
	}
}

// startSSHServer serves the dashboard to holders of an authorized key.
// Remote sessions share the local monitor and skip the login screen.
func startSSHServer(cfg config.DashboardConfig, monitor *dashboard.Monitor) (*ssh.Server, error) {
	s, err := wish.NewServer(
		wish.WithAddress(cfg.SSHAddr),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithPublicKeyAuth(func(_ ssh.Context, key ssh.PublicKey) bool {
			data, err := os.ReadFile(cfg.AuthorizedKeys)
			if err != nil {
				log.Warn().Err(err).Str("path", cfg.AuthorizedKeys).Msg("Cannot read authorized keys")
				return false
			}
			return isKeyAllowed(data, key)
		}),
		wish.WithMiddleware(
			bm.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				events, unsubscribe := monitor.Subscribe()
				go func() {
					<-s.Context().Done()
					unsubscribe()
				}()

				log.Info().Str("user", s.User()).Str("remote", s.RemoteAddr().String()).Msg("SSH session opened")
				return tui.New(s.Context(), monitor, nil, events).WithBell(s.Stderr()), []tea.ProgramOption{tea.WithAltScreen()}
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}

	go func() {
		log.Info().Str("addr", cfg.SSHAddr).Msg("SSH server listening")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error().Err(err).Msg("SSH server stopped")
		}
	}()

	return s, nil
}

func isKeyAllowed(authFileData []byte, incomingKey ssh.PublicKey) bool {
	for len(authFileData) > 0 {
		allowedKey, _, _, rest, err := ssh.ParseAuthorizedKey(authFileData)
		if err != nil {
			return false
		}
		if ssh.KeysEqual(allowedKey, incomingKey) {
			return true
		}
		authFileData = rest
	}
	return false
}
