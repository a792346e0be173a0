package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mlavoie/feedgo/internal/config"
	"github.com/mlavoie/feedgo/internal/debug"
	"github.com/mlavoie/feedgo/internal/hw/camera"
	"github.com/mlavoie/feedgo/internal/hw/gpio"
	"github.com/mlavoie/feedgo/internal/hw/stepper"
	"github.com/mlavoie/feedgo/internal/logic/feeder"
	"github.com/mlavoie/feedgo/internal/telemetry"
	"github.com/mlavoie/feedgo/internal/vision"
	"github.com/mlavoie/feedgo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start diagnostics server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	threshold := flag.Float64("threshold", 0, "override confidence threshold (0-1)")
	interval := flag.Int("interval", 0, "override check interval in seconds")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate and apply CLI overrides (zero means "use config default")
	if err := validateOverrides(*threshold, *interval); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *threshold, *interval)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	// Initialize GPIO driver
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize dispense motor
	debug.Step(2, "Initializing dispense motor")
	motor := stepper.NewMotor(gpioDriver, stepper.Config{
		StepPin:      cfg.Motor.StepPin,
		DirPin:       cfg.Motor.DirPin,
		EnablePin:    cfg.Motor.EnablePin,
		StepsPerRev:  cfg.Motor.StepsPerRev,
		StepDelay:    cfg.StepPulseDelay(),
		SettleDelay:  cfg.SettleDelay(),
		PortionPause: cfg.PortionPause(),
	})
	debug.PrintStruct("Motor config", cfg.Motor)

	// Load classifier model (fatal on failure: the loop is useless without it)
	debug.Step(3, "Loading classifier model")
	model, err := vision.LoadModel(cfg.Vision.ModelPath)
	if err != nil {
		log.Fatalf("load model failed: %v", err)
	}
	classifier := vision.NewClassifier(model, cfg.Vision.ConfidenceThreshold)

	// Open camera (fatal on failure)
	debug.Step(4, "Opening camera")
	cam, err := camera.NewDevice(cfg.Camera.DeviceID, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FlushFrames)
	if err != nil {
		log.Fatalf("open camera failed: %v", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.Printf("closing camera failed: %v", err)
		}
	}()

	// Telemetry publisher; a broker that is down at startup is not
	// fatal, the loop reconnects on later iterations.
	debug.Step(5, "Connecting telemetry publisher")
	publisher := telemetry.NewPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
	if err := publisher.Connect(); err != nil {
		debug.Error(fmt.Errorf("initial broker connect: %w", err))
	}
	defer publisher.Disconnect()

	loop := feeder.New(cam, classifier, publisher, motor, feeder.Config{
		CheckInterval:       cfg.CheckInterval(),
		MinDispenseInterval: cfg.MinDispenseInterval(),
		Portions:            cfg.Loop.Portions,
		ConfidenceThreshold: cfg.Vision.ConfidenceThreshold,
	})

	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		handlers := web.NewHandlers(broadcaster, loop.Status, loop.TriggerDispense)
		srv := web.NewServer(fmt.Sprintf(":%d", port), handlers)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("diagnostics server: %v", err)
			}
		}()
	}

	debug.Summary("FeedGo started")
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("control loop: %v", err)
	}
	debug.Summary("FeedGo stopped")
}

// validateOverrides checks that non-zero CLI overrides are within valid
// ranges. Zero values are ignored (they mean "use config default").
func validateOverrides(threshold float64, interval int) error {
	if threshold != 0 {
		if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
			return fmt.Errorf("threshold must be between 0 and 1 exclusive, got %g", threshold)
		}
	}
	if interval != 0 {
		if interval < 1 || interval > 3600 {
			return fmt.Errorf("interval must be 1-3600 seconds, got %d", interval)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override
// values are applied.
func applyOverrides(cfg *config.Config, threshold float64, interval int) {
	if threshold > 0 {
		cfg.Vision.ConfidenceThreshold = threshold
	}
	if interval > 0 {
		cfg.Loop.CheckIntervalSeconds = interval
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or
// -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
