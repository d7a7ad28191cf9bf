package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"gofoc/config"
	"gofoc/core"
	"gofoc/sim"
)

var (
	configPath = flag.String("config", "", "JSON controller configuration (defaults when empty)")
	outPath    = flag.String("o", "", "Output file (stdout when empty)")
	format     = flag.String("format", "csv", "Output format: csv or justfloat")
	duration   = flag.Float64("duration", 2, "Simulated time in seconds")
	openLoop   = flag.Float64("openloop", 0.2, "Forced-angle startup time in seconds")
	speed      = flag.Float64("speed", 0, "Speed target in rpm (config value when 0)")
	source     = flag.String("source", "", "Angle source: sensor or observer (config value when empty)")
	every      = flag.Int("every", 10, "Emit one sample every N control cycles")
	load       = flag.Float64("load", 0, "Load torque in N·m")
	loadAt     = flag.Float64("load-at", 1, "Time in seconds the load is applied")
	theta      = flag.Float64("theta", 0, "Initial mechanical rotor angle in radians")
	debug      = flag.Bool("debug", false, "Print controller debug output and the event ring to stderr")
)

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(*configPath)
}

func main() {
	flag.Parse()

	core.SetDebugWriter(func(msg string) {
		fmt.Fprintln(os.Stderr, msg)
	})
	core.SetDebugEnabled(*debug)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *speed != 0 {
		cfg.Control.TargetSpeed = *speed
	}
	if *source != "" {
		cfg.Sensor.AngleSource = *source
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rig, err := sim.NewRig(cfg, sim.NewMotor(sim.ParamsFromConfig(cfg), float32(*theta)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	w, err := newSampleWriter(*format, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sc := scenario{
		Duration: float32(*duration),
		OpenLoop: float32(*openLoop),
		Load:     float32(*load),
		LoadAt:   float32(*loadAt),
		Every:    *every,
	}
	final, err := simulate(ctx, rig, sc, w.Write)
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	fmt.Fprintf(os.Stderr, "final: mode=%s speed=%.1f rpm (plant %.1f rpm) iq=%.3f A\n",
		final.Mode, final.SpeedFilt, rig.Motor.SpeedRPM(), final.CurrentFilt.Q)
	if *debug {
		core.DumpTimingRing()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
