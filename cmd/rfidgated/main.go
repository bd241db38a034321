package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/config"
	"github.com/collapsinghierarchy/rfidgate/controller"
	"github.com/collapsinghierarchy/rfidgate/hardware"
	"github.com/collapsinghierarchy/rfidgate/hardware/periph"
	"github.com/collapsinghierarchy/rfidgate/hardware/sim"
	"github.com/collapsinghierarchy/rfidgate/hardware/wifi"
	"github.com/collapsinghierarchy/rfidgate/provision"
	"github.com/collapsinghierarchy/rfidgate/routes"
	"github.com/collapsinghierarchy/rfidgate/service"
	"github.com/collapsinghierarchy/rfidgate/store/backend"
)

// board is what every hardware driver provides.
type board interface {
	hardware.SerialReader
	hardware.Actuator
	hardware.ToneOutput
	hardware.Button
}

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "path to config.toml")
	flag.Parse()

	//----------------------------------------------------------------------
	// 1. config
	//----------------------------------------------------------------------
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetPrefix(cfg.LogPrefix)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//----------------------------------------------------------------------
	// 2. record store; without it the device halts
	//----------------------------------------------------------------------
	st, closeStore, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()
	log.Printf("store ready (%s)", cfg.Store.Backend)

	//----------------------------------------------------------------------
	// 3. hardware
	//----------------------------------------------------------------------
	clk := clock.Real{}
	var b board
	switch cfg.Hardware.Driver {
	case config.DriverPeriph:
		pb, err := periph.Open(periph.Pins{
			SPIPort:     cfg.Hardware.SPIPort,
			Reset:       cfg.Hardware.ResetPin,
			IRQ:         cfg.Hardware.IRQPin,
			Lock:        cfg.Hardware.LockPin,
			Buzzer:      cfg.Hardware.BuzzerPin,
			Button:      cfg.Hardware.ButtonPin,
			Debounce:    cfg.Hardware.Debounce,
			ReadTimeout: cfg.Hardware.ReadTimeout,
		}, clk)
		if err != nil {
			log.Fatalf("hardware: %v", err)
		}
		defer pb.Close()
		b = pb
	default:
		b = sim.New(os.Stdin)
		log.Printf("simulated hardware: type a uid per line, \"!\" for the mode button")
	}
	log.Printf("scanner ready")

	//----------------------------------------------------------------------
	// 4. provisioning: service → routes → session
	//----------------------------------------------------------------------
	svc := service.New(st, clk)
	api := routes.SetupRoutes(svc, routes.Options{
		RateLimitPerMinute: cfg.Provision.RateLimitPerMinute,
		RateLimitBurst:     cfg.Provision.RateLimitBurst,
	})
	var ap provision.AccessPoint = wifi.NoopAccessPoint{}
	if cfg.AP.Enabled {
		ap = wifi.NewAccessPoint(wifi.Config{
			Interface:  cfg.AP.Interface,
			SSID:       cfg.AP.SSID,
			Passphrase: cfg.AP.Passphrase,
			Channel:    cfg.AP.Channel,
			Hostapd:    cfg.AP.Hostapd,
			ConfPath:   cfg.AP.ConfPath,
		})
	}
	sess := provision.New(svc, api, cfg.Provision.Listen, ap)

	//----------------------------------------------------------------------
	// 5. control loop until SIGINT/SIGTERM
	//----------------------------------------------------------------------
	ctl := controller.New(controller.Config{
		UnlockFor:            cfg.Door.UnlockFor,
		PollInterval:         cfg.Door.PollInterval,
		ArmWindow:            cfg.Provision.ArmWindow,
		ProvisionIdleTimeout: cfg.Provision.IdleTimeout,
		ExtendOnRescan:       cfg.Door.ExtendOnRescan,
	}, st, hardware.NewAdapter(b), b, hardware.NewPlayer(b, clk), clk,
		controller.WithButton(b),
		controller.WithProvisioner(sess),
	)

	if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("control loop: %v", err)
	}
	log.Println("shutting down …")
}
