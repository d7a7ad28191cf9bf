package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gofoc/core"
	"gofoc/telemetry"
)

type sampleWriter interface {
	Write(t float32, s core.Snapshot) error
	Flush() error
}

// csvWriter writes one row per sample with a header of channel names.
type csvWriter struct {
	w      *csv.Writer
	header bool
	values []float32
	rec    []string
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: csv.NewWriter(w)}
}

func (c *csvWriter) Write(t float32, s core.Snapshot) error {
	if !c.header {
		c.header = true
		if err := c.w.Write(append([]string{"t"}, telemetry.ChannelNames...)); err != nil {
			return err
		}
	}
	c.values = telemetry.Channels(c.values[:0], s)
	c.rec = append(c.rec[:0], strconv.FormatFloat(float64(t), 'f', 5, 32))
	for _, v := range c.values {
		c.rec = append(c.rec, strconv.FormatFloat(float64(v), 'g', 6, 32))
	}
	return c.w.Write(c.rec)
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// justFloatWriter emits VOFA+ JustFloat frames with the time as the first
// channel.
type justFloatWriter struct {
	w      *bufio.Writer
	values []float32
	buf    []byte
}

func newJustFloatWriter(w io.Writer) *justFloatWriter {
	return &justFloatWriter{w: bufio.NewWriter(w)}
}

func (j *justFloatWriter) Write(t float32, s core.Snapshot) error {
	j.values = telemetry.Channels(append(j.values[:0], t), s)
	j.buf = telemetry.EncodeJustFloat(j.buf[:0], j.values)
	_, err := j.w.Write(j.buf)
	return err
}

func (j *justFloatWriter) Flush() error {
	return j.w.Flush()
}

func newSampleWriter(format string, w io.Writer) (sampleWriter, error) {
	switch format {
	case "csv":
		return newCSVWriter(w), nil
	case "justfloat", "vofa":
		return newJustFloatWriter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
