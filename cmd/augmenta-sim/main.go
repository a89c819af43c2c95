// augmenta-sim sends a synthetic Augmenta stream to a receiver.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/logging"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/transport"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "augmenta-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("augmenta-sim", pflag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "receiver host")
	port := fs.IntP("port", "p", 12000, "receiver OSC port")
	version := fs.String("protocol", "v2", "protocol version (v1, v2)")
	objects := fs.IntP("objects", "n", 5, "number of simultaneous objects")
	fps := fs.Float64("fps", 30, "frames per second")
	width := fs.Float64("width", 8, "scene width in meters")
	height := fs.Float64("height", 6, "scene height in meters")
	extra := fs.Bool("extra", false, "also send v2 extra messages")
	lifetime := fs.Duration("lifetime", 20*time.Second, "time before an object leaves and is replaced (0 = never)")
	duration := fs.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flipX := fs.Bool("flip-x", false, "mirror the stream on the X axis")
	flipY := fs.Bool("flip-y", false, "mirror the stream on the Y axis")
	bundle := fs.Bool("bundle", true, "send each frame as one OSC bundle")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, *logLevel, nil)
	logger := slogManager.Logger()

	v, err := protocol.ParseVersion(*version)
	if err != nil {
		return err
	}
	if *fps <= 0 {
		return fmt.Errorf("invalid fps %g: must be positive", *fps)
	}
	enc, err := protocol.NewEncoder(protocol.Options{Version: v, Flips: protocol.Flips{X: *flipX, Y: *flipY}})
	if err != nil {
		return err
	}
	sender := transport.NewSender(*host, *port, enc)

	sim := newSimulator(simConfig{
		Version:  v,
		Objects:  *objects,
		Width:    *width,
		Height:   *height,
		Extra:    *extra,
		Lifetime: *lifetime,
		Seed:     *seed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	interval := time.Duration(float64(time.Second) / *fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Sending synthetic stream",
		"target", fmt.Sprintf("%s:%d", *host, *port),
		"protocol", v.String(),
		"objects", *objects,
		"fps", *fps)

	var sent, failed int
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopped", "frames", sim.frame, "sent", sent, "failed", failed)
			return nil
		case now := <-ticker.C:
			msgs := sim.step(now.Sub(last))
			last = now

			if *bundle {
				err = sender.SendBundle(msgs...)
			} else {
				for _, m := range msgs {
					if err = sender.Send(m); err != nil {
						break
					}
				}
			}
			if err != nil {
				failed++
				if failed == 1 {
					logger.Warn("Failed to send frame", "frame", sim.frame, "error", err)
				}
				continue
			}
			sent += len(msgs)
			logger.Debug("Sent frame", "frame", sim.frame, "messages", len(msgs))
		}
	}
}
