package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dudk/patch/device"
	"github.com/dudk/patch/engine"
	"github.com/dudk/patch/preset"
)

type runCommand struct {
	preset     string
	sampleRate int
	blockSize  int
	meter      bool
}

func (cmd *runCommand) Name() string {
	return "run"
}

func (cmd *runCommand) Help() string {
	return "Run a preset live on the default audio device"
}

func (cmd *runCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.preset, "preset", "", "path to preset file")
	fs.IntVar(&cmd.sampleRate, "rate", 44100, "sample rate")
	fs.IntVar(&cmd.blockSize, "block", 512, "block size in frames")
	fs.BoolVar(&cmd.meter, "meter", false, "print output levels once a second")
}

func (cmd *runCommand) Run() error {
	if cmd.preset == "" {
		return errors.New("preset path is required")
	}
	e := engine.New(cmd.sampleRate, cmd.blockSize, registry())
	if _, err := preset.Load(cmd.preset, e); err != nil {
		return err
	}

	d, err := device.Open(e)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Println("Running, press ctrl+c to stop")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	done := false
	for !done {
		select {
		case <-ctx.Done():
			done = true
		case event := <-e.Events():
			switch event.Type {
			case engine.NodeFault:
				fmt.Printf("node %v faulted: %v\n", event.Node, event.Err)
			case engine.LateBlock:
				fmt.Println("late block")
			}
		case <-ticker.C:
			if cmd.meter {
				peak, rms := e.Meter()
				fmt.Printf("peak %.3f rms %.3f\n", peak, rms)
			}
		}
	}

	if err := d.Close(); err != nil {
		return err
	}
	if err := e.Close(); err != nil {
		return err
	}
	diag := e.Diagnostics()
	fmt.Printf("Processed %v blocks, %v late, %v faults, %v underruns, %v overruns\n",
		diag.Blocks, diag.LateBlocks, diag.Faults, diag.Underruns, diag.Overruns)
	return nil
}
