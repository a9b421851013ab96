// Cameo tracking daemon - keeps the pan/tilt/arm camera rig pointed at
// the selected subject using the perception pipeline's detections.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Group6Cameo/go-cameo/internal/config"
	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/actuator"
	"github.com/Group6Cameo/go-cameo/pkg/manual"
	"github.com/Group6Cameo/go-cameo/pkg/supervise"
	"github.com/Group6Cameo/go-cameo/pkg/tracking"
	"github.com/Group6Cameo/go-cameo/pkg/tracking/feed"
	"github.com/Group6Cameo/go-cameo/pkg/web"
)

type options struct {
	configPath string
	feedMode   string
	csvPath    string
	wsURL      string
	serialPath string
	mock       bool
	addr       string
	targetPath string
	perception string
	debug      bool
}

func main() {
	opts := parseFlags()

	level := "info"
	if opts.debug {
		level = "debug"
	}
	log.Init(level)

	cfg := tracking.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = tracking.LoadConfig(opts.configPath)
		if err != nil {
			log.Fatal("configuration rejected", "path", opts.configPath, "error", err)
		}
	}

	fmt.Println("🎥 Cameo Tracking Rig")
	fmt.Printf("   Feed:   %s\n", feedDescription(opts))
	fmt.Printf("   Servos: %s\n", servoDescription(opts))
	fmt.Printf("   API:    http://localhost%s\n", opts.addr)
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Detection feed
	var source feed.Source
	switch opts.feedMode {
	case "ws":
		source = feed.NewWSSource(opts.wsURL)
	case "csv":
		source = feed.NewCSVSource(opts.csvPath, cfg.ActuateInterval)
	default:
		log.Fatal("unknown feed mode", "feed", opts.feedMode)
	}

	// Manual target store
	store, err := manual.NewFileStore(opts.targetPath, cfg.DefaultSubject, cfg.ManualInterval)
	if err != nil {
		log.Fatal("manual target store", "error", err)
	}
	go func() {
		if err := store.Watch(ctx); err != nil {
			log.Warn("target file watch ended", "error", err)
		}
	}()

	// Actuators
	var driver tracking.Driver
	if opts.mock {
		driver = actuator.NewMock()
		fmt.Println("🔌 Dry run: servo commands recorded, not sent")
	} else {
		maestro, err := actuator.OpenMaestro(opts.serialPath)
		if err != nil {
			log.Fatal("servo controller", "error", err)
		}
		defer maestro.Close()
		driver = maestro
		fmt.Println("✅ Servo controller connected")
	}

	// Optional supervised perception process
	if opts.perception != "" {
		parts := strings.Fields(opts.perception)
		mgr := supervise.NewManager()
		mgr.Add(supervise.ProcessConfig{Name: parts[0], Args: parts[1:]})
		if err := mgr.Start(ctx); err != nil {
			log.Fatal("perception process", "error", err)
		}
		defer mgr.Stop()
	}

	tracker := tracking.New(cfg, source, store, driver)

	// Control plane
	server := web.NewServer(opts.addr, tracker, store)
	tracker.SetStateUpdater(server)
	go func() {
		if err := server.Run(ctx); err != nil {
			log.Error("control api failed", "error", err)
		}
	}()

	if err := tracker.Run(ctx); err != nil {
		log.Fatal("tracker", "error", err)
	}

	fmt.Println("👋 Goodbye!")
}

// parseFlags parses command line flags, with environment fallbacks for
// the deployment-specific paths.
func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.Getenv("CAMEO_CONFIG", ""), "Tracking config file (JSON); defaults apply when empty")
	flag.StringVar(&opts.feedMode, "feed", config.Getenv("CAMEO_FEED", "csv"), "Detection feed: csv or ws")
	flag.StringVar(&opts.csvPath, "csv", config.Getenv("CAMEO_CSV", "tmp/face_info_log.csv"), "Detection drop file for -feed csv")
	flag.StringVar(&opts.wsURL, "ws", config.Getenv("CAMEO_WS", "ws://127.0.0.1:8765/detections"), "Detection stream URL for -feed ws")
	flag.StringVar(&opts.serialPath, "serial", config.Getenv("CAMEO_SERIAL", "/dev/ttyACM0"), "Maestro serial device")
	flag.BoolVar(&opts.mock, "mock", config.GetenvBool("CAMEO_MOCK", false), "Record servo commands instead of driving hardware")
	flag.StringVar(&opts.addr, "addr", config.Getenv("CAMEO_ADDR", ":8420"), "Control API listen address")
	flag.StringVar(&opts.targetPath, "target-file", config.Getenv("CAMEO_TARGET_FILE", "tmp/target_face.txt"), "Manual target file")
	flag.StringVar(&opts.perception, "perception", config.Getenv("CAMEO_PERCEPTION", ""), "Perception command to supervise (optional)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable verbose debug logging")
	flag.Parse()
	return opts
}

func feedDescription(opts options) string {
	if opts.feedMode == "ws" {
		return opts.wsURL
	}
	return opts.csvPath
}

func servoDescription(opts options) string {
	if opts.mock {
		return "mock"
	}
	return opts.serialPath
}
