package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/calmh/envsense/bmp180"
	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/motion"
	"github.com/calmh/envsense/sensor"
	"github.com/calmh/envsense/station"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device")
	transport := flag.String("transport", i2c.Sysfs, "I2C transport (sysfs, periph)")
	interval := flag.Duration("interval", time.Second, "Interval between measurements")
	decimals := flag.Int("decimals", 2, "Rounding precision")
	buffer := flag.Bool("buffer", false, "Use output buffering")
	format := flag.String("format", "json", "Output format (json, text)")
	oversampling := flag.Int("oversampling", 4, "Barometer oversampling (1, 2, 4, 8)")
	samples := flag.Int("humidity-samples", 1, "Humidity conversions averaged per reading")
	attempts := flag.Int("poll-attempts", i2c.DefaultPollAttempts, "Ready-bit checks before giving up")
	pollIntv := flag.Duration("poll-interval", i2c.DefaultPollInterval, "Interval between ready-bit checks")
	pirPin := flag.String("pir-pin", "", "GPIO pin of the motion sensor (empty to disable)")
	pirIntv := flag.Duration("pir-interval", motion.DefaultInterval, "Motion sensor sampling interval")
	flag.Parse()

	if *format != "json" && *format != "text" {
		log.Fatalln("unknown output format:", *format)
	}

	oss, err := bmp180.ParseOversampling(*oversampling)
	if err != nil {
		log.Fatalln("oversampling:", err)
	}

	bus, closer, err := i2c.Open(*transport, *device)
	if err != nil {
		log.Fatalln("open I2C device:", err)
	}
	defer closer.Close()

	cfg := station.DefaultConfig()
	cfg.BMP180.Oversampling = oss
	cfg.HTS221.Samples = *samples
	cfg.Poll = i2c.Poll{Interval: *pollIntv, MaxAttempts: *attempts}

	st, err := station.Open(bus, cfg)
	if err != nil {
		log.Println("init sensors:", err)
	}
	if len(st.Sensors()) == 0 {
		log.Fatalln("no sensors available")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *pirPin != "" {
		det := startMotion(ctx, *pirPin, *pirIntv)
		defer det.Stop()
	}

	out := io.Writer(os.Stdout)
	if *buffer {
		bw := bufio.NewWriter(out)
		defer bw.Flush()
		out = bw
	}
	enc := json.NewEncoder(out)

	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		c := st.Measure(ctx)
		if *format == "text" {
			_, err = io.WriteString(out, textLine(c)+"\n")
		} else {
			err = enc.Encode(fields(c, *decimals))
		}
		if err != nil {
			log.Println("write:", err)
			return
		}
	}
}

// fields flattens a cycle into one JSON object keyed by sensor, quantity,
// channel and unit, e.g. "bmp180_pressure_pascal".
func fields(c station.Cycle, decimals int) map[string]interface{} {
	fields := make(map[string]interface{})
	fields["when"] = c.At
	fields["cycle"] = c.ID
	for _, r := range c.Readings {
		fields[fieldName(r)] = round(r.Value, decimals)
	}
	if len(c.Errors) > 0 {
		errs := make(map[string]string, len(c.Errors))
		for name, err := range c.Errors {
			errs[name] = err.Error()
		}
		fields["errors"] = errs
	}
	return fields
}

// textLine formats a cycle as one line of key=value pairs, with units
// scaled for reading.
func textLine(c station.Cycle) string {
	parts := []string{c.At.Format(time.RFC3339)}
	for _, r := range c.Readings {
		parts = append(parts, r.String())
	}
	names := make([]string, 0, len(c.Errors))
	for name := range c.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s!=%q", name, c.Errors[name].Error()))
	}
	return strings.Join(parts, " ")
}

func fieldName(r sensor.Reading) string {
	parts := []string{r.Sensor, r.Quantity.String()}
	if r.Channel != "" {
		parts = append(parts, strings.ReplaceAll(r.Channel, "-", "_"))
	}
	if u := r.Quantity.Unit(); u != r.Quantity.String() {
		parts = append(parts, u)
	}
	return strings.Join(parts, "_")
}

func startMotion(ctx context.Context, name string, intv time.Duration) *motion.Detector {
	if _, err := host.Init(); err != nil {
		log.Fatalln("initialize host:", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		log.Fatalln("unknown GPIO pin:", name)
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		log.Fatalln("configure GPIO pin:", err)
	}

	det, err := motion.New(pin, motion.Config{Interval: intv, Buffer: 16})
	if err != nil {
		log.Fatalln("init motion detector:", err)
	}
	if err := det.Start(ctx); err != nil {
		log.Fatalln("start motion detector:", err)
	}
	go func() {
		for ev := range det.Events() {
			log.Println("motion detected:", ev.ID, ev.At.Format(time.RFC3339))
		}
		if n := det.Dropped(); n > 0 {
			log.Println("motion events dropped:", n)
		}
	}()
	return det
}

// round returns the half away from zero rounded value of x with prec precision.
//
// Special cases are:
//	Round(±0) = +0
//	Round(±Inf) = ±Inf
//	Round(NaN) = NaN
func round(x float64, prec int) float64 {
	if x == 0 {
		// Make sure zero is returned
		// without the negative bit set.
		return 0
	}
	// Fast path for positive precision on integers.
	if prec >= 0 && x == math.Trunc(x) {
		return x
	}
	pow := math.Pow10(prec)
	intermed := x * pow
	if math.IsInf(intermed, 0) {
		return x
	}
	if x < 0 {
		x = math.Ceil(intermed - 0.5)
	} else {
		x = math.Floor(intermed + 0.5)
	}

	if x == 0 {
		return 0
	}

	return x / pow
}
