// Command fabricd is the fabric routing server: the single process that
// accepts machine and environment connections on their four TCP ports,
// runs the router core, the heartbeat monitor, and the media fan-out, and
// serves the read-only admin HTTP + WebSocket surface (SPEC_FULL.md §1-2).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/robofabric/fabric/internal/admin"
	"github.com/robofabric/fabric/internal/config"
	"github.com/robofabric/fabric/internal/server/heartbeat"
	"github.com/robofabric/fabric/internal/server/media"
	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/server/router"
	"github.com/robofabric/fabric/internal/tui"
)

const shutdownGrace = 5 * time.Second

var (
	configPath string
	watchFlag  bool
	tuiFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "fabricd",
	Short: "Routing server for the machine/environment messaging fabric",
	Long: `fabricd accepts machine and environment control and media
connections, routes function calls, sensor reads, axis changes, and
heartbeats between them, fans out media streams to environment
subscribers, and serves a read-only admin dashboard over HTTP.`,
	RunE: runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a fabricd.toml config file (defaults apply if omitted)")
	rootCmd.Flags().BoolVar(&watchFlag, "watch", false, "hot-reload live-safe config fields when --config changes on disk")
	rootCmd.Flags().BoolVar(&tuiFlag, "tui", false, "run the operator dashboard in the foreground instead of waiting on a signal")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock, err := config.AcquireSingleton(cfg.GetLockPath())
	if err != nil {
		return fmt.Errorf("acquire singleton lock: %w", err)
	}
	defer lock.Unlock()

	store := config.NewStore(cfg)

	if watchFlag && configPath != "" {
		watcher, err := config.WatchFile(configPath, store)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Stop()
	}

	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	r := router.New(machines, environments)
	slots := media.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx)

	monitor := heartbeat.New(machines, environments)
	monitor.Start(ctx)
	defer monitor.Stop()

	listeners, err := startListeners(ctx, cfg, r, machines, slots)
	if err != nil {
		return err
	}
	defer closeListeners(listeners)

	source := &admin.Source{Machines: machines, Environments: environments, Router: r}
	adminSrv := admin.NewServer(cfg.GetAdminAddr(), source)
	adminErrc := make(chan error, 1)
	adminSrv.Start(adminErrc)

	log.Printf("fabricd: listening — machine control %d, environment control %d, machine media %d, environment media %d, admin %s",
		cfg.GetMachineControlPort(), cfg.GetEnvironmentControlPort(), cfg.GetMachineMediaPort(), cfg.GetEnvironmentMediaPort(), cfg.GetAdminAddr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if tuiFlag {
		program := tea.NewProgram(tui.New(source))
		go func() {
			select {
			case err := <-adminErrc:
				log.Printf("fabricd: admin server error: %v", err)
				program.Quit()
			case <-sigChan:
				program.Quit()
			}
		}()
		if _, err := program.Run(); err != nil {
			log.Printf("fabricd: dashboard error: %v", err)
		}
		log.Printf("fabricd: shutting down")
	} else {
		select {
		case err := <-adminErrc:
			log.Printf("fabricd: admin server error: %v", err)
		case <-sigChan:
			log.Printf("fabricd: shutting down")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("fabricd: admin server shutdown error: %v", err)
	}
	return nil
}

type boundListeners struct {
	machineControl     net.Listener
	environmentControl net.Listener
	machineMedia       net.Listener
	environmentMedia   net.Listener
}

func startListeners(ctx context.Context, cfg *config.ServerConfig, r *router.Router, machines *registry.Machines, slots *media.Registry) (*boundListeners, error) {
	mc, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GetMachineControlPort()))
	if err != nil {
		return nil, fmt.Errorf("listen machine control: %w", err)
	}
	ec, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GetEnvironmentControlPort()))
	if err != nil {
		mc.Close()
		return nil, fmt.Errorf("listen environment control: %w", err)
	}
	mm, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GetMachineMediaPort()))
	if err != nil {
		mc.Close()
		ec.Close()
		return nil, fmt.Errorf("listen machine media: %w", err)
	}
	em, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GetEnvironmentMediaPort()))
	if err != nil {
		mc.Close()
		ec.Close()
		mm.Close()
		return nil, fmt.Errorf("listen environment media: %w", err)
	}

	go acceptLoop(ctx, mc, "machine control", func(conn net.Conn) { r.ServeMachineControl(conn) })
	go acceptLoop(ctx, ec, "environment control", func(conn net.Conn) { r.ServeEnvironmentControl(conn) })
	go acceptLoop(ctx, mm, "machine media", func(conn net.Conn) { media.ServeMachineMedia(conn, machines, slots) })
	go acceptLoop(ctx, em, "environment media", func(conn net.Conn) { media.ServeEnvironmentMedia(conn, slots) })

	return &boundListeners{machineControl: mc, environmentControl: ec, machineMedia: mm, environmentMedia: em}, nil
}

func closeListeners(l *boundListeners) {
	l.machineControl.Close()
	l.environmentControl.Close()
	l.machineMedia.Close()
	l.environmentMedia.Close()
}

// acceptLoop accepts connections until ctx is cancelled or the listener
// closes, handing each one to handle in its own goroutine (spec.md §4.H:
// one task pair per connection).
func acceptLoop(ctx context.Context, ln net.Listener, label string, handle func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("fabricd: %s accept error: %v", label, err)
				return
			}
		}
		go handle(conn)
	}
}
