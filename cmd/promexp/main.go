package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/calmh/envsense/bmp180"
	"github.com/calmh/envsense/i2c"
	"github.com/calmh/envsense/motion"
	"github.com/calmh/envsense/sensor"
	"github.com/calmh/envsense/station"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	quantities = []sensor.Quantity{
		sensor.Temperature,
		sensor.Pressure,
		sensor.Humidity,
		sensor.Voltage,
		sensor.Ratio,
		sensor.Resistance,
		sensor.Light,
	}

	spreadGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sensors",
		Name:      "window_spread",
		Help:      "Difference between the largest and smallest value in the window.",
	}, []string{"sensor", "quantity", "channel"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sensors",
		Name:      "errors_total",
		Help:      "Failed sensor measurements.",
	}, []string{"sensor", "code"})

	motionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sensors",
		Subsystem: "motion",
		Name:      "events_total",
		Help:      "Samples taken while the motion sensor reported presence.",
	})
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device")
	transport := flag.String("transport", i2c.Sysfs, "I2C transport (sysfs, periph)")
	promaddr := flag.String("prometheus", ":9120", "Prometheus exporter address")
	interval := flag.Duration("interval", 5*time.Second, "Interval between measurements")
	window := flag.Duration("window", time.Minute, "Median window")
	oversampling := flag.Int("oversampling", 4, "Barometer oversampling (1, 2, 4, 8)")
	samples := flag.Int("humidity-samples", 1, "Humidity conversions averaged per reading")
	attempts := flag.Int("poll-attempts", i2c.DefaultPollAttempts, "Ready-bit checks before giving up")
	pollIntv := flag.Duration("poll-interval", i2c.DefaultPollInterval, "Interval between ready-bit checks")
	pirPin := flag.String("pir-pin", "", "GPIO pin of the motion sensor (empty to disable)")
	pirIntv := flag.Duration("pir-interval", motion.DefaultInterval, "Motion sensor sampling interval")
	flag.Parse()

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
	log.Println("sensors:", st.Sensors())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *pirPin != "" {
		det := startMotion(ctx, *pirPin, *pirIntv)
		defer det.Stop()
	}

	win := NewWindow(*window, *interval, st)
	win.OnCycle = func(c station.Cycle) {
		for name, err := range c.Errors {
			code := string(sensor.Of(err))
			if code == "" {
				code = "other"
			}
			errorsTotal.WithLabelValues(name, code).Inc()
		}
		win.Each(publish)
	}
	go win.Serve(ctx)

	servePrometheus(ctx, *promaddr)
}

var gauges = make(map[sensor.Quantity]*prometheus.GaugeVec)

func init() {
	for _, q := range quantities {
		name := q.String()
		if u := q.Unit(); u != name {
			name += "_" + u
		}
		gauges[q] = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sensors",
			Name:      name,
			Help:      "Median " + q.String() + " over the window.",
		}, []string{"sensor", "channel"})
	}
}

func publish(r sensor.Reading, median, spread float64) {
	if g, ok := gauges[r.Quantity]; ok {
		g.WithLabelValues(r.Sensor, r.Channel).Set(round(median, 4))
	}
	spreadGauge.WithLabelValues(r.Sensor, r.Quantity.String(), r.Channel).Set(round(spread, 4))
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
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sensors",
		Subsystem: "motion",
		Name:      "dropped_events",
	}, func() float64 {
		return float64(det.Dropped())
	})

	if err := det.Start(ctx); err != nil {
		log.Fatalln("start motion detector:", err)
	}
	go func() {
		for range det.Events() {
			motionTotal.Inc()
		}
	}()
	return det
}

func servePrometheus(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("serve prometheus:", err)
	}
}

func round(x float64, prec int) float64 {
	pow := math.Pow10(prec)
	return math.Round(x*pow) / pow
}
