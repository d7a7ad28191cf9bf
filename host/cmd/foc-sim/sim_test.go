package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"gofoc/config"
	"gofoc/core"
	"gofoc/sim"
	"gofoc/telemetry"
)

func testRig(t *testing.T) *sim.Rig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Control.Current = config.PIDConfig{Kp: 0.94, Ki: 0.0377, Limit: 3.375}
	cfg.Control.TargetIQ = 0.05
	cfg.Control.TargetSpeed = 600
	cfg.OpenLoop = config.OpenLoopConfig{SpeedRPM: 100, Current: 0.5}
	cfg.Alignment.Voltage = 0.5
	cfg.Alignment.Steps = 50
	cfg.Alignment.StepDelayMS = 2
	cfg.Alignment.SettleMS = 200
	rig, err := sim.NewRig(cfg, sim.NewMotor(sim.ParamsFromConfig(cfg), 0.3/7))
	if err != nil {
		t.Fatalf("NewRig failed: %v", err)
	}
	return rig
}

func TestSimulateCSV(t *testing.T) {
	rig := testRig(t)
	var buf bytes.Buffer
	w := newCSVWriter(&buf)
	sc := scenario{Duration: 0.5, OpenLoop: 0.2, Every: 10}

	final, err := simulate(context.Background(), rig, sc, w.Write)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if final.Mode != core.ModeSpeedClosedLoop {
		t.Errorf("Expected the scenario to end in the speed loop, got %v", final.Mode)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 1+500 {
		t.Fatalf("Expected header plus 500 rows, got %d records", len(records))
	}
	if records[0][0] != "t" || records[0][1] != telemetry.ChannelNames[0] {
		t.Errorf("Unexpected header %v", records[0])
	}
	if len(records[1]) != 1+len(telemetry.ChannelNames) {
		t.Errorf("Expected %d columns, got %d", 1+len(telemetry.ChannelNames), len(records[1]))
	}
	if records[500][0] != "0.50000" {
		t.Errorf("Expected the last sample at t=0.5, got %s", records[500][0])
	}
	t.Logf("final speed %.1f rpm, plant %.1f rpm", final.SpeedFilt, rig.Motor.SpeedRPM())
}

func TestSimulateJustFloat(t *testing.T) {
	rig := testRig(t)
	var buf bytes.Buffer
	w := newJustFloatWriter(&buf)
	sc := scenario{Duration: 0.3, OpenLoop: 0.1, Every: 100}

	if _, err := simulate(context.Background(), rig, sc, w.Write); err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	w.Flush()

	frames, used := telemetry.DecodeJustFloat(buf.Bytes(), 1+len(telemetry.ChannelNames))
	if len(frames) != 30 || used != buf.Len() {
		t.Fatalf("Expected 30 frames using all %d bytes, got %d frames using %d", buf.Len(), len(frames), used)
	}
	if frames[0][0] <= 0 || frames[29][0] < frames[0][0] {
		t.Errorf("Expected increasing sample times, got %v .. %v", frames[0][0], frames[29][0])
	}
}

func TestSimulateStopsOnFault(t *testing.T) {
	rig := testRig(t)
	sc := scenario{Duration: 0.5, OpenLoop: 0.1, Every: 10}
	emit := func(ts float32, s core.Snapshot) error {
		if s.Mode == core.ModeCurrentClosedLoop {
			rig.Motor.SetSensorError(errors.New("sensor unplugged"))
		}
		return nil
	}
	final, err := simulate(context.Background(), rig, sc, emit)
	if err == nil {
		t.Fatalf("Expected an error after the sensor failed")
	}
	if final.Mode != core.ModeFault || final.Fault != core.FaultEncoder {
		t.Errorf("Expected an encoder fault, got %v/%v", final.Mode, final.Fault)
	}
}

func TestNewSampleWriter(t *testing.T) {
	for _, f := range []string{"csv", "justfloat", "vofa"} {
		if _, err := newSampleWriter(f, &bytes.Buffer{}); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
	if _, err := newSampleWriter("xml", &bytes.Buffer{}); err == nil {
		t.Errorf("Expected an error for an unknown format")
	}
}
