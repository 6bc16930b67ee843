// fleetwatch follows the dashboard's realtime channel and prints every
// update to the console.
// Usage: go run ./cmd/fleetwatch --config configs/fleet.yaml --kind pipeline_frame_update
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/aios-edge/fleet-realtime/internal/auth"
	"github.com/aios-edge/fleet-realtime/internal/config"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/notify"
	"github.com/aios-edge/fleet-realtime/internal/realtime"
	"github.com/aios-edge/fleet-realtime/internal/subscription"
	"github.com/aios-edge/fleet-realtime/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		wsURL      string
		clientID   string
		token      string
		kinds      []string
		verbose    bool
		showVer    bool
	)

	flagSet := pflag.NewFlagSet("fleetwatch", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to config file (optional)")
	flagSet.StringVar(&wsURL, "ws-url", "", "override server.ws_url")
	flagSet.StringVar(&clientID, "client-id", "", "override auth.client_id")
	flagSet.StringVar(&token, "token", "", "override auth.token")
	flagSet.StringSliceVarP(&kinds, "kind", "k", nil, "message kinds to print (default: all)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "print full message JSON")
	flagSet.BoolVar(&showVer, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVer {
		fmt.Println("fleetwatch", version.String())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if wsURL != "" {
		cfg.Server.WSURL = wsURL
	}
	if clientID != "" {
		cfg.Auth.ClientID = clientID
	}
	if token != "" {
		cfg.Auth.Token = token
	}
	if cfg.Instance.ID == "" {
		cfg.Instance.ID = "fleetwatch"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stderr)

	selected, err := parseKinds(kinds)
	if err != nil {
		return err
	}

	identity, err := cfg.Identity()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := auth.NewSession()
	ch := realtime.New(cfg.ManagerConfig(), session,
		realtime.WithLogger(logger),
		realtime.WithNotifier(consoleSink{}),
	)

	for _, kind := range selected {
		sub := ch.Subscribe(kind, printer(verbose))
		defer sub.Unsubscribe()
	}

	go logStats(ctx, ch, logger)

	if err := session.Login(identity); err != nil {
		return err
	}

	logger.Info("following realtime channel - press Ctrl+C to stop",
		"url", cfg.Server.WSURL,
		"client_id", identity.ClientID,
		"kinds", len(selected),
	)

	if err := ch.FollowAuth(ctx, session); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWithDefaults(path)
}

func parseKinds(names []string) ([]message.Kind, error) {
	if len(names) == 0 {
		return message.Catalog, nil
	}
	var out []message.Kind
	for _, n := range names {
		k := message.Kind(strings.TrimSpace(n))
		if !k.Known() {
			return nil, fmt.Errorf("unknown kind %q", n)
		}
		out = append(out, k)
	}
	return out, nil
}

func printer(verbose bool) subscription.Handler {
	return func(p message.Payload) {
		if verbose {
			data, _ := json.MarshalIndent(p, "", "  ")
			fmt.Printf("[%s] %s\n", strings.ToUpper(string(p.Kind())), data)
			return
		}
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(p.Kind())), summary(p))
	}
}

func summary(p message.Payload) string {
	switch v := p.(type) {
	case message.PipelineFrameUpdate:
		return fmt.Sprintf("%s frame=%d fps=%.1f detections=%d",
			v.PipelineID, v.FrameData.FrameID, v.FrameData.FPS, v.FrameData.DetectionsCount)
	case message.PipelineStatusUpdate:
		return fmt.Sprintf("%s status=%s", v.PipelineID, v.Status)
	case message.PipelineUpdate:
		return fmt.Sprintf("%s action=%s status=%s", v.PipelineID, v.Action, v.Status)
	case message.PipelineError:
		return fmt.Sprintf("%s error=%q", v.PipelineID, v.ErrorMessage)
	case message.DeviceUpdate:
		return fmt.Sprintf("%s status=%s", v.DeviceID, v.Status)
	case message.EventUpdate:
		return fmt.Sprintf("%s %s severity=%s", v.ID, v.EventType, v.Severity)
	case message.SystemStatsUpdate:
		return fmt.Sprintf("pipelines=%d/%d frames=%d",
			v.Stats.RunningPipelines, v.Stats.TotalPipelines, v.Stats.TotalFramesProcessed)
	default:
		data, _ := json.Marshal(p)
		return string(data)
	}
}

// consoleSink prints notifications inline with updates.
type consoleSink struct{}

func (consoleSink) Notify(n notify.Notification) {
	fmt.Printf("!! %s: %s %s\n", strings.ToUpper(string(n.Level)), n.Title, n.Message)
}

func logStats(ctx context.Context, ch *realtime.Channel, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := ch.Stats()
			logger.Info("stats",
				"state", s.Connection.State.String(),
				"opens", s.Connection.Opens,
				"reconnect_attempt", s.Reconnect.Attempt,
				"received", s.Router.MessagesReceived,
				"dispatched", s.Router.MessagesDispatched,
				"parse_errors", s.Router.ParseErrors,
				"unknown_kinds", s.Router.UnknownKinds,
			)
		}
	}
}
