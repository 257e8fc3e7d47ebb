package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/obsmirror/obsmirror/internal/config"
	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/obsproc"
)

func main() {
	configPath := flag.String("config", "obsmirror.yaml", "Path to config file")
	host := flag.String("host", "", "Override OBS websocket host")
	port := flag.Int("port", 0, "Override OBS websocket port")
	password := flag.String("password", "", "Override OBS websocket password")
	check := flag.Bool("check", false, "List running OBS processes and exit")
	watch := flag.Bool("watch", false, "Keep running and log mirror changes")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *host != "" {
		cfg.OBS.Host = *host
	}
	if *port > 0 {
		cfg.OBS.Port = *port
	}
	if *password != "" {
		cfg.OBS.Password = *password
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *check {
		if err := printProcesses(ctx, os.Stdout); err != nil {
			log.Fatalf("Process probe failed: %v", err)
		}
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := obs.New(cfg.ClientOptions(logger))
	if err := client.Init(ctx); err != nil {
		if running, _ := obsproc.Running(context.Background()); !running {
			log.Printf("No OBS process found on this machine")
		}
		log.Fatalf("Failed to connect to OBS: %v", err)
	}
	defer client.Destroy()

	if err := printSnapshot(os.Stdout, client.Snapshot()); err != nil {
		log.Fatalf("Failed to write snapshot: %v", err)
	}
	if !*watch {
		return
	}

	changes, stop := client.Watch(64)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
			return
		case change := <-changes:
			logChange(client, change)
			if change.Kind == obs.ChangeState && client.State() == obs.StateIdle {
				log.Println("OBS session ended")
				return
			}
		}
	}
}

func printProcesses(ctx context.Context, w io.Writer) error {
	procs, err := obsproc.Find(ctx)
	if err != nil {
		return err
	}
	if len(procs) == 0 {
		fmt.Fprintln(w, "OBS is not running")
		return nil
	}
	return yaml.NewEncoder(w).Encode(procs)
}

func printSnapshot(w io.Writer, snap obs.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}

func logChange(client *obs.Client, change obs.Change) {
	switch change.Kind {
	case obs.ChangeInputMute, obs.ChangeInputVolume:
		if in, ok := client.AudioInput(change.ID); ok {
			log.Printf("input %q muted=%v volume=%.1fdB", in.Name, in.Muted(), in.VolumeDB())
			return
		}
	case obs.ChangeSceneItem:
		for _, scene := range client.Scenes() {
			if item, ok := scene.Item(change.ID); ok {
				log.Printf("scene %q item %q enabled=%v", scene.Name, item.SourceName, item.Enabled())
			}
		}
		return
	case obs.ChangeProgramScene:
		if scene, ok := client.Scene(change.ID); ok {
			log.Printf("program scene %q", scene.Name)
			return
		}
	case obs.ChangeStream:
		if stream, ok := client.Stream(); ok {
			log.Printf("streaming=%v", stream.Active())
			return
		}
	case obs.ChangeState:
		log.Printf("session %s", client.State())
		return
	case obs.ChangeConnection:
		log.Printf("connected=%v", client.IsConnected())
		return
	}
	log.Printf("%s %s", change.Kind, change.ID)
}
