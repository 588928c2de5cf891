// Package main runs one convolutional layer on an accelerator, reports its
// throughput and checks the result against the host reference.
//
// Usage:
//
//	go run ./cmd/convlayer -device webgpu -vendor nvidia
//	go run ./cmd/convlayer -device host -channels 16 -input 36
//
// Exit status is 1 on any device or configuration failure and 2 when the
// device output does not match the reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/device/host"
	"github.com/born-ml/convlayer/internal/device/webgpu"
	"github.com/born-ml/convlayer/internal/loader"
	"github.com/born-ml/convlayer/internal/parallel"
	"github.com/born-ml/convlayer/internal/verify"
)

const (
	exitFailure  = 1
	exitMismatch = 2
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("convlayer: ")

	def := cnn.DefaultConfig()
	backend := flag.String("device", "auto", "Accelerator: host, webgpu or auto")
	vendor := flag.String("vendor", "", "Only accept devices whose vendor starts with this string")
	channels := flag.Int("channels", def.Channels, "Input and output channels (C)")
	inputSize := flag.Int("input", def.InputSize, "Input side length (Hin)")
	kernelSize := flag.Int("kernel", def.KernelSize, "Kernel side length (K)")
	poolSize := flag.Int("pool", def.PoolSize, "Pooling window and stride (P)")
	seed := flag.Uint64("seed", 1, "Seed for the synthetic layer data")
	runs := flag.Int("runs", 1, "Number of timed invocations")
	workers := flag.Int("workers", 0, "Host device worker goroutines (0 = one per CPU)")
	check := flag.Bool("verify", true, "Compare the output with the host reference")
	flag.Parse()

	cfg := cnn.Config{
		Channels:   *channels,
		InputSize:  *inputSize,
		KernelSize: *kernelSize,
		PoolSize:   *poolSize,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, cfg, options{
		backend: *backend,
		vendor:  *vendor,
		seed:    *seed,
		runs:    *runs,
		workers: *workers,
		verify:  *check,
	})
	stop()
	os.Exit(code)
}

type options struct {
	backend string
	vendor  string
	seed    uint64
	runs    int
	workers int
	verify  bool
}

func run(ctx context.Context, cfg cnn.Config, opts options) int {
	dev, err := openDevice(opts)
	if err != nil {
		log.Printf("%v", err)
		return exitFailure
	}
	defer dev.Release()

	fmt.Printf("Device: %s\n", dev.Info())
	fmt.Printf("Layer:  %s\n", cfg)

	layer, err := loader.Synthetic(cfg, opts.seed)
	if err != nil {
		log.Printf("%v", err)
		return exitFailure
	}

	p, err := cnn.New(dev, cfg)
	if err != nil {
		log.Printf("%v", err)
		return exitFailure
	}
	defer p.Release()

	tiling := p.Tiling()
	fmt.Printf("Tiling: bias-init %v, convolution %v, activation %v, pooling %v\n",
		tiling.Local(cnn.StageBiasInit), tiling.Local(cnn.StageConvolution),
		tiling.Local(cnn.StageActivation), tiling.Local(cnn.StagePooling))

	runs := max(opts.runs, 1)
	for i := 1; i <= runs; i++ {
		out, timing, err := p.Run(ctx, layer.Input, layer.Weights, layer.Bias)
		if err != nil {
			log.Printf("run %d: %v", i, err)
			return exitFailure
		}
		fmt.Printf("Run %d: %v total, %v kernels, %.2f GOPS\n",
			i, timing.Elapsed(), timing.KernelElapsed(), timing.GOPS(cfg))

		if !opts.verify || i < runs {
			continue
		}
		report, err := verify.Verify(cfg, layer.Input, layer.Weights, layer.Bias, out, verify.DefaultTolerance())
		if err != nil {
			log.Printf("verify: %v", err)
			return exitFailure
		}
		if !report.OK() {
			log.Printf("verification failed: %v", report)
			return exitMismatch
		}
		fmt.Printf("Verify: %v\n", report)
	}
	return 0
}

func openDevice(opts options) (device.Device, error) {
	pred := device.Any()
	if opts.vendor != "" {
		pred = device.VendorPrefix(opts.vendor)
	}

	newHost := func() device.Device {
		cfg := host.DefaultConfig()
		if opts.workers > 0 {
			cfg.Workers = parallel.Config{Enabled: true, NumWorkers: opts.workers, MinChunkSize: 1}
		}
		return host.New(cfg)
	}

	switch strings.ToLower(opts.backend) {
	case "host", "cpu":
		return device.Select([]device.Device{newHost()}, pred)
	case "webgpu", "gpu":
		gpu, err := webgpu.Open(pred)
		if err != nil {
			return nil, err
		}
		return gpu, nil
	case "auto":
		var candidates []device.Device
		if gpu, err := webgpu.Open(pred); err == nil {
			candidates = append(candidates, gpu)
		}
		candidates = append(candidates, newHost())
		return device.Select(candidates, pred)
	default:
		return nil, fmt.Errorf("unknown device %q (want host, webgpu or auto)", opts.backend)
	}
}
