package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/cjeanneret/NikBot/internal/config"
	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/bridge"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
	"github.com/cjeanneret/NikBot/internal/logic/robot"
	"github.com/cjeanneret/NikBot/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mock := flag.Bool("mock", false, "force mock GPIO and the simulated companion module")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4); -1 keeps the config value")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateDebugLevel(*debugLevel); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, cliOverrides{mock: *mock, debugLevel: *debugLevel})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
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

	// Open the companion module link
	debug.Step(2, "Opening serial bridge")
	debug.PrintStruct("Bridge config", cfg.Bridge)
	serialPort, err := openPort(cfg)
	if err != nil {
		log.Fatalf("open bridge failed: %v", err)
	}
	link := bridge.New(serialPort, bridge.Options{
		PollInterval: cfg.PollInterval(),
		SettleDelay:  cfg.SettleDelay(),
	})
	defer link.Close()

	// Build and start the robot
	debug.Step(3, "Initializing robot")
	rb, err := robot.New(cfg, gpioDriver, link)
	if err != nil {
		log.Fatalf("init robot failed: %v", err)
	}
	if err := rb.Begin(ctx); err != nil {
		log.Fatalf("start robot failed: %v", err)
	}

	var wg sync.WaitGroup
	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv := web.NewServer(webAddr, broadcaster, rb)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	debug.Summary("NikBot running")
	if err := rb.Run(ctx, cfg.LoopInterval()); err != nil {
		log.Printf("control loop: %v", err)
	}
	cancel()
	wg.Wait()
	debug.Info("Shutdown complete")
}

// cliOverrides holds the flags that take precedence over the config file.
type cliOverrides struct {
	mock       bool
	debugLevel int // -1 keeps the config value
}

// validateDebugLevel accepts -1 (unset) or a level 0-4.
func validateDebugLevel(level int) error {
	if level < -1 || level > debug.LevelTrace {
		return fmt.Errorf("debug must be between 0 and %d, got %d", debug.LevelTrace, level)
	}
	return nil
}

// applyOverrides mutates cfg with the CLI flags that were set.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.mock {
		cfg.Defaults.MockGPIO = true
		cfg.Bridge.Mock = true
	}
	if o.debugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.debugLevel
	}
}

// openPort returns the simulated module in mock mode, the serial device otherwise.
func openPort(cfg *config.Config) (bridge.Port, error) {
	if cfg.Bridge.Mock {
		debug.Info("Using simulated companion module")
		return bridge.NewSimulator(), nil
	}
	return bridge.OpenPort(bridge.PortConfig{
		Device:      cfg.Bridge.Device,
		Baud:        cfg.Bridge.Baud,
		Driver:      cfg.Bridge.Driver,
		ReadTimeout: cfg.PollInterval(),
	})
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
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
