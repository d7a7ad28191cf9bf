// Package config loads the JSON motor and controller configuration used by
// the host tools and the simulator, and turns it into controller settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gofoc/core"
)

// MotorConfig holds the machine constants.
type MotorConfig struct {
	PolePairs    int     `json:"pole_pairs"`
	Rs           float64 `json:"rs"`            // ohm
	Ls           float64 `json:"ls"`            // henry
	FluxLinkage  float64 `json:"flux_linkage"`  // Wb, simulator only
	Inertia      float64 `json:"inertia"`       // kg·m², simulator only
	Damping      float64 `json:"damping"`       // N·m·s, simulator only
	RatedCurrent float64 `json:"rated_current"` // A
	RatedVoltage float64 `json:"rated_voltage"` // V
}

// PIDConfig configures one loop. Limit is the symmetric output clamp.
type PIDConfig struct {
	Kp    float64 `json:"kp"`
	Ki    float64 `json:"ki"`
	Kd    float64 `json:"kd"`
	Limit float64 `json:"limit"`
}

// ControlConfig holds the loop rates and gains.
type ControlConfig struct {
	LoopHz        float64   `json:"loop_hz"`
	SpeedDivider  int       `json:"speed_divider"`
	BusVoltage    float64   `json:"bus_voltage"`
	Current       PIDConfig `json:"current_pid"`
	Speed         PIDConfig `json:"speed_pid"`
	RampStep      float64   `json:"ramp_step"` // rpm per speed tick
	StopThreshold float64   `json:"stop_threshold"`
	CurrentFilter float64   `json:"current_filter"`
	SpeedFilter   float64   `json:"speed_filter"`
	TargetID      float64   `json:"target_id"`
	TargetIQ      float64   `json:"target_iq"`
	TargetSpeed   float64   `json:"target_speed"`
}

// SensorConfig selects the angle source and tunes the encoder speed estimate.
type SensorConfig struct {
	AngleSource string  `json:"angle_source"` // "sensor" or "observer"
	Reversed    bool    `json:"reversed"`
	SpeedFilter float64 `json:"speed_filter"`
}

// ObserverConfig selects and tunes the sensorless estimator.
type ObserverConfig struct {
	Type         string  `json:"type"` // "smo", "luenberger" or "none"
	KSlide       float64 `json:"k_slide"`
	KLPF         float64 `json:"k_lpf"`
	Boundary     float64 `json:"boundary"`
	L1           float64 `json:"l1"`
	L2           float64 `json:"l2"`
	PLLBandwidth float64 `json:"pll_bandwidth"` // Hz, SMO
	SpeedFilter  float64 `json:"speed_filter"`

	// The Luenberger back-EMF estimate is not normalised before the PLL, so
	// it needs a slower loop than the SMO.
	LuenbergerPLLBandwidth float64 `json:"luenberger_pll_bandwidth"` // Hz
}

type OpenLoopConfig struct {
	SpeedRPM float64 `json:"speed_rpm"`
	AccelRPM float64 `json:"accel_rpm"` // rpm/s
	Voltage  float64 `json:"voltage"`
	Current  float64 `json:"current"`
}

// AlignmentConfig durations are in milliseconds.
type AlignmentConfig struct {
	Voltage        float64 `json:"voltage"`
	Steps          int     `json:"steps"`
	StepDelayMS    float64 `json:"step_delay_ms"`
	SettleMS       float64 `json:"settle_ms"`
	Samples        int     `json:"samples"`
	DetectPolarity bool    `json:"detect_polarity"`
	PolarityStep   float64 `json:"polarity_step"`
	MinMovement    float64 `json:"min_movement"`
}

// ProtectionConfig ratios apply to the rated motor values.
type ProtectionConfig struct {
	Disabled          bool    `json:"disabled"`
	OverCurrentRatio  float64 `json:"over_current_ratio"`
	OverVoltageRatio  float64 `json:"over_voltage_ratio"`
	UnderVoltageRatio float64 `json:"under_voltage_ratio"`
	StaleAngleCycles  int     `json:"stale_angle_cycles"`
}

type HandoffConfig struct {
	Auto      bool    `json:"auto"`
	WindowRPM float64 `json:"window_rpm"`
	Cycles    int     `json:"cycles"`
}

type FluxWeakeningConfig struct {
	Enabled bool    `json:"enabled"`
	Ki      float64 `json:"ki"`
	IDMin   float64 `json:"id_min"`
	Ratio   float64 `json:"ratio"`
}

// Config is the complete configuration file.
type Config struct {
	Motor         MotorConfig         `json:"motor"`
	Control       ControlConfig       `json:"control"`
	Sensor        SensorConfig        `json:"sensor"`
	Observer      ObserverConfig      `json:"observer"`
	OpenLoop      OpenLoopConfig      `json:"open_loop"`
	Alignment     AlignmentConfig     `json:"alignment"`
	Protection    ProtectionConfig    `json:"protection"`
	Handoff       HandoffConfig       `json:"handoff"`
	FluxWeakening FluxWeakeningConfig `json:"flux_weakening"`
}

var ErrInvalidConfig = errors.New("config: invalid configuration")

// LoadConfig parses a JSON configuration and fills in defaults.
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills in missing values from DefaultConfig.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	m := &cfg.Motor
	if m.PolePairs == 0 {
		m.PolePairs = def.Motor.PolePairs
	}
	if m.Rs == 0 {
		m.Rs = def.Motor.Rs
	}
	if m.Ls == 0 {
		m.Ls = def.Motor.Ls
	}
	if m.FluxLinkage == 0 {
		m.FluxLinkage = def.Motor.FluxLinkage
	}
	if m.Inertia == 0 {
		m.Inertia = def.Motor.Inertia
	}
	if m.Damping == 0 {
		m.Damping = def.Motor.Damping
	}
	if m.RatedCurrent == 0 {
		m.RatedCurrent = def.Motor.RatedCurrent
	}

	c := &cfg.Control
	if c.LoopHz == 0 {
		c.LoopHz = def.Control.LoopHz
	}
	if c.SpeedDivider == 0 {
		c.SpeedDivider = def.Control.SpeedDivider
	}
	if c.BusVoltage == 0 {
		c.BusVoltage = def.Control.BusVoltage
	}
	if m.RatedVoltage == 0 {
		m.RatedVoltage = c.BusVoltage
	}
	if c.Current == (PIDConfig{}) {
		c.Current = def.Control.Current
		c.Current.Limit = c.BusVoltage / 4
	}
	if c.Speed == (PIDConfig{}) {
		c.Speed = def.Control.Speed
	}
	if c.RampStep == 0 {
		c.RampStep = def.Control.RampStep
	}
	if c.StopThreshold == 0 {
		c.StopThreshold = def.Control.StopThreshold
	}
	if c.CurrentFilter == 0 {
		c.CurrentFilter = def.Control.CurrentFilter
	}
	if c.SpeedFilter == 0 {
		c.SpeedFilter = def.Control.SpeedFilter
	}

	if cfg.Sensor.AngleSource == "" {
		cfg.Sensor.AngleSource = def.Sensor.AngleSource
	}
	if cfg.Sensor.SpeedFilter == 0 {
		cfg.Sensor.SpeedFilter = def.Sensor.SpeedFilter
	}

	o := &cfg.Observer
	if o.Type == "" {
		o.Type = def.Observer.Type
	}
	if o.KSlide == 0 {
		o.KSlide = def.Observer.KSlide
	}
	if o.KLPF == 0 {
		o.KLPF = def.Observer.KLPF
	}
	if o.Boundary == 0 {
		o.Boundary = def.Observer.Boundary
	}
	if o.L1 == 0 {
		o.L1 = def.Observer.L1
	}
	if o.L2 == 0 {
		o.L2 = def.Observer.L2
	}
	if o.PLLBandwidth == 0 {
		o.PLLBandwidth = def.Observer.PLLBandwidth
	}
	if o.LuenbergerPLLBandwidth == 0 {
		o.LuenbergerPLLBandwidth = def.Observer.LuenbergerPLLBandwidth
	}
	if o.SpeedFilter == 0 {
		o.SpeedFilter = def.Observer.SpeedFilter
	}

	if cfg.OpenLoop.SpeedRPM == 0 {
		cfg.OpenLoop.SpeedRPM = def.OpenLoop.SpeedRPM
	}
	if cfg.OpenLoop.Voltage == 0 && cfg.OpenLoop.Current == 0 {
		cfg.OpenLoop.Voltage = def.OpenLoop.Voltage
	}

	a := &cfg.Alignment
	if a.Voltage == 0 {
		a.Voltage = def.Alignment.Voltage
	}
	if a.Steps == 0 {
		a.Steps = def.Alignment.Steps
	}
	if a.StepDelayMS == 0 {
		a.StepDelayMS = def.Alignment.StepDelayMS
	}
	if a.SettleMS == 0 {
		a.SettleMS = def.Alignment.SettleMS
	}
	if a.Samples == 0 {
		a.Samples = def.Alignment.Samples
	}
	if a.PolarityStep == 0 {
		a.PolarityStep = def.Alignment.PolarityStep
	}
	if a.MinMovement == 0 {
		a.MinMovement = def.Alignment.MinMovement
	}

	p := &cfg.Protection
	if p.OverCurrentRatio == 0 {
		p.OverCurrentRatio = def.Protection.OverCurrentRatio
	}
	if p.OverVoltageRatio == 0 {
		p.OverVoltageRatio = def.Protection.OverVoltageRatio
	}
	if p.UnderVoltageRatio == 0 {
		p.UnderVoltageRatio = def.Protection.UnderVoltageRatio
	}
	if p.StaleAngleCycles == 0 {
		p.StaleAngleCycles = def.Protection.StaleAngleCycles
	}

	if cfg.Handoff.WindowRPM == 0 {
		cfg.Handoff.WindowRPM = def.Handoff.WindowRPM
	}
	if cfg.Handoff.Cycles == 0 {
		cfg.Handoff.Cycles = def.Handoff.Cycles
	}

	fw := &cfg.FluxWeakening
	if fw.Ki == 0 {
		fw.Ki = def.FluxWeakening.Ki
	}
	if fw.IDMin == 0 {
		fw.IDMin = def.FluxWeakening.IDMin
	}
	if fw.Ratio == 0 {
		fw.Ratio = def.FluxWeakening.Ratio
	}
}

// DefaultConfig returns the reference tuning for a 7 pole-pair gimbal motor
// on a 13.5 V bus with a 10 kHz current loop.
func DefaultConfig() *Config {
	return &Config{
		Motor: MotorConfig{
			PolePairs:    7,
			Rs:           0.12,
			Ls:           0.0003,
			FluxLinkage:  0.0025,
			Inertia:      2e-5,
			Damping:      1e-6,
			RatedCurrent: 2,
			RatedVoltage: 13.5,
		},
		Control: ControlConfig{
			LoopHz:        10000,
			SpeedDivider:  10,
			BusVoltage:    13.5,
			Current:       PIDConfig{Kp: 0.017, Ki: 0.0002826, Limit: 13.5 / 4},
			Speed:         PIDConfig{Kp: 0.01, Ki: 2e-5, Limit: 1},
			RampStep:      1,
			StopThreshold: 20,
			CurrentFilter: 0.2,
			SpeedFilter:   0.1,
		},
		Sensor: SensorConfig{
			AngleSource: "sensor",
			SpeedFilter: 0.2,
		},
		Observer: ObserverConfig{
			Type:         "smo",
			KSlide:       1.4,
			KLPF:         0.4,
			Boundary:     3,
			L1:           -13000,
			L2:           2200,
			PLLBandwidth: 100,
			SpeedFilter:  0.05,

			LuenbergerPLLBandwidth: 50,
		},
		OpenLoop: OpenLoopConfig{
			SpeedRPM: 200,
			Voltage:  1,
		},
		Alignment: AlignmentConfig{
			Voltage:      0.1,
			Steps:        1000,
			StepDelayMS:  2,
			SettleMS:     500,
			Samples:      16,
			PolarityStep: 1.5707964,
			MinMovement:  0.3,
		},
		Protection: ProtectionConfig{
			OverCurrentRatio:  1.5,
			OverVoltageRatio:  1.2,
			UnderVoltageRatio: 0.5,
			StaleAngleCycles:  10,
		},
		Handoff: HandoffConfig{
			WindowRPM: 50,
			Cycles:    100,
		},
		FluxWeakening: FluxWeakeningConfig{
			Ki:    0.0005,
			IDMin: -1,
			Ratio: 0.95,
		},
	}
}

// Validate checks values applyDefaults cannot repair.
func (c *Config) Validate() error {
	switch {
	case c.Motor.PolePairs <= 0:
		return fmt.Errorf("%w: pole_pairs must be positive", ErrInvalidConfig)
	case c.Motor.Ls <= 0 || c.Motor.Rs < 0:
		return fmt.Errorf("%w: rs must be >= 0 and ls > 0", ErrInvalidConfig)
	case c.Control.LoopHz <= 0:
		return fmt.Errorf("%w: loop_hz must be positive", ErrInvalidConfig)
	case c.Control.BusVoltage <= 0:
		return fmt.Errorf("%w: bus_voltage must be positive", ErrInvalidConfig)
	case c.Control.Current.Limit <= 0 || c.Control.Speed.Limit <= 0:
		return fmt.Errorf("%w: pid limits must be positive", ErrInvalidConfig)
	case c.Control.SpeedDivider < 1:
		return fmt.Errorf("%w: speed_divider must be at least 1", ErrInvalidConfig)
	case c.Observer.KLPF <= 0 || c.Observer.KLPF > 1:
		return fmt.Errorf("%w: observer k_lpf must be in (0, 1]", ErrInvalidConfig)
	}
	if _, ok := core.ParseAngleSource(c.Sensor.AngleSource); !ok {
		return fmt.Errorf("%w: unknown angle source %q", ErrInvalidConfig, c.Sensor.AngleSource)
	}
	switch strings.ToLower(c.Observer.Type) {
	case "smo", "luenberger", "none":
	default:
		return fmt.Errorf("%w: unknown observer type %q", ErrInvalidConfig, c.Observer.Type)
	}
	return nil
}

// Ts returns the current loop period in seconds.
func (c *Config) Ts() float32 {
	return float32(1 / c.Control.LoopHz)
}

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func gains(p PIDConfig) core.PIDGains {
	return core.PIDGains{Kp: float32(p.Kp), Ki: float32(p.Ki), Kd: float32(p.Kd), Limit: float32(p.Limit)}
}

// ControllerSettings converts the configuration into controller settings.
func (c *Config) ControllerSettings() core.Settings {
	source, _ := core.ParseAngleSource(c.Sensor.AngleSource)
	direction := float32(1)
	if c.Sensor.Reversed {
		direction = -1
	}
	ctl := c.Control
	return core.Settings{
		PolePairs:    c.Motor.PolePairs,
		Ts:           c.Ts(),
		BusVoltage:   float32(ctl.BusVoltage),
		SpeedDivider: ctl.SpeedDivider,

		Current: gains(ctl.Current),
		Speed:   gains(ctl.Speed),

		RampStep:         float32(ctl.RampStep),
		StopThresholdRPM: float32(ctl.StopThreshold),

		TargetID:    float32(ctl.TargetID),
		TargetIQ:    float32(ctl.TargetIQ),
		TargetSpeed: float32(ctl.TargetSpeed),

		CurrentFilterAlpha: float32(ctl.CurrentFilter),
		SpeedFilterAlpha:   float32(ctl.SpeedFilter),

		SensorDirection: direction,
		AngleSource:     source,

		OpenLoop: core.OpenLoopSettings{
			SpeedRPM: float32(c.OpenLoop.SpeedRPM),
			AccelRPM: float32(c.OpenLoop.AccelRPM),
			Voltage:  float32(c.OpenLoop.Voltage),
			Current:  float32(c.OpenLoop.Current),
		},
		Alignment: core.AlignmentSettings{
			Voltage:        float32(c.Alignment.Voltage),
			Steps:          c.Alignment.Steps,
			StepDelay:      ms(c.Alignment.StepDelayMS),
			Settle:         ms(c.Alignment.SettleMS),
			Samples:        c.Alignment.Samples,
			DetectPolarity: c.Alignment.DetectPolarity,
			PolarityStep:   float32(c.Alignment.PolarityStep),
			MinMovement:    float32(c.Alignment.MinMovement),
		},
		Protection: core.ProtectionSettings{
			Enabled:           !c.Protection.Disabled,
			RatedCurrent:      float32(c.Motor.RatedCurrent),
			RatedVoltage:      float32(c.Motor.RatedVoltage),
			OverCurrentRatio:  float32(c.Protection.OverCurrentRatio),
			OverVoltageRatio:  float32(c.Protection.OverVoltageRatio),
			UnderVoltageRatio: float32(c.Protection.UnderVoltageRatio),
			StaleAngleCycles:  c.Protection.StaleAngleCycles,
		},
		Handoff: core.HandoffSettings{
			Auto:      c.Handoff.Auto,
			WindowRPM: float32(c.Handoff.WindowRPM),
			Cycles:    c.Handoff.Cycles,
		},
		FluxWeakening: core.FluxWeakeningSettings{
			Enabled: c.FluxWeakening.Enabled,
			Ki:      float32(c.FluxWeakening.Ki),
			IDMin:   float32(c.FluxWeakening.IDMin),
			Ratio:   float32(c.FluxWeakening.Ratio),
		},
	}
}
