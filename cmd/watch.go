package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/plasmo-layout/internal/build"
	"github.com/conneroisu/plasmo-layout/internal/notify"
	"github.com/conneroisu/plasmo-layout/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then regenerate components as they change",
	Long: `Run a full build, then watch the include directories and the layouts
directory. An edited or new component is rebuilt; a deleted component has its
generated HTML removed. Layout edits are reported but need a full build.

With --notify-addr, every generated, failed and deleted file is broadcast as a
JSON message to WebSocket clients connected at /events.

Examples:
  plasmo-layout watch
  plasmo-layout watch --notify-addr localhost:35729`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)
	watchFlags = AddStandardFlags(watchCmd, "notify")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := build.NewBuilder(p.cfg, p.fs, p.logger)

	p.logger.Info(ctx, "Running initial build")
	summary, err := builder.BuildProject(ctx)
	if err != nil {
		return err
	}
	printf(cmd, "%s\n", renderBuildSummary(p, summary))

	var hub *notify.Hub
	if watchFlags.NotifyAddr != "" {
		hub = notify.NewHub(p.logger)
		addr, errc, err := notify.Serve(ctx, watchFlags.NotifyAddr, hub)
		if err != nil {
			return err
		}
		p.logger.Info(ctx, "Serving build events", "url", "ws://"+addr.String()+notify.Path)
		go func() {
			if err := <-errc; err != nil {
				p.logger.Error(ctx, err, "Event server stopped")
			}
		}()
	}

	controller := watcher.NewController(p.cfg, p.fs, builder, watchCallbacks(cmd, p, hub), p.logger)
	if err := controller.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	p.logger.Info(context.Background(), "Stopping watcher")

	err = controller.Stop()
	if hub != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := hub.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// watchCallbacks prints progress and, when hub is set, broadcasts it.
func watchCallbacks(cmd *cobra.Command, p *project, hub *notify.Hub) watcher.Callbacks {
	broadcast := func(kind, path, message string) {
		if hub == nil {
			return
		}
		hub.Broadcast(notify.Event{
			Type:      kind,
			Path:      relative(p, path),
			Error:     message,
			Timestamp: time.Now(),
		})
	}

	return watcher.Callbacks{
		OnProcessComplete: func(path string, success bool, message string) {
			if success {
				printf(cmd, "%s %s\n", successStyle.Render("✓"), relative(p, path))
				broadcast(notify.EventGenerated, path, "")
				return
			}
			printf(cmd, "%s %s: %s\n", errorStyle.Render("✗"), relative(p, path), message)
			broadcast(notify.EventFailed, path, message)
		},
		OnDelete: func(artifactPath string) {
			printf(cmd, "%s %s\n", mutedStyle.Render("−"), relative(p, artifactPath))
			broadcast(notify.EventDeleted, artifactPath, "")
		},
		OnLayoutChange: func(path string) {
			broadcast(notify.EventLayout, path, "")
		},
		OnReady: func() {
			printf(cmd, "Watching for changes... (Press Ctrl+C to stop)\n")
		},
	}
}
