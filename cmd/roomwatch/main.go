// roomwatch - camera-driven occupancy detection with a decaying relay timer.
// Watches a room through a webcam, classifies scan windows with an SVM and
// switches a USB relay off once nobody has been seen for the timer duration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-roomwatch/internal/config"
	"github.com/teslashibe/go-roomwatch/internal/log"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

func main() {
	envFile := flag.String("env", "", "Path to a .env file (default ./.env)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	addr := flag.String("addr", "", "Listen address host:port (overrides APP_HOST/APP_PORT)")
	device := flag.String("camera", "", "Camera index, path or URL (overrides CAMERA_DEVICE)")
	serialPort := flag.String("relay-port", "", "Relay serial port (overrides RELAY_SERIAL_PORT)")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := relay.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "list ports: %v\n", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if *device != "" {
		cfg.CameraDevice = *device
	}
	if *serialPort != "" {
		cfg.RelaySerialPort = *serialPort
	}
	log.Debug("configuration loaded",
		"camera", cfg.CameraDevice,
		"preset", cfg.CameraPreset,
		"model", cfg.ModelPath,
		"scaler", cfg.ScalerPath,
		"timer", cfg.TimerDuration,
		"interval", cfg.DetectionInterval,
	)
	if cfg.RelaySerialPort == "" {
		log.Warn("no relay serial port configured, relay state is virtual")
	}
	log.Info("roomwatch starting", "app", cfg.AppName, "room", cfg.RoomID)

	a, err := newApp(cfg, *addr)
	if err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = a.Run(ctx)
	cancel()
	a.Close()
	log.Info("shutdown complete")
	if err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}
