package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/dudk/patch/engine"
	"github.com/dudk/patch/preset"
)

type renderCommand struct {
	preset     string
	seconds    float64
	sampleRate int
	blockSize  int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render a preset offline; wav/mp3 sink nodes capture the result"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.preset, "preset", "", "path to preset file")
	fs.Float64Var(&cmd.seconds, "seconds", 10, "duration to render")
	fs.IntVar(&cmd.sampleRate, "rate", 44100, "sample rate")
	fs.IntVar(&cmd.blockSize, "block", 512, "block size in frames")
}

func (cmd *renderCommand) Run() error {
	if cmd.preset == "" {
		return errors.New("preset path is required")
	}
	e := engine.New(cmd.sampleRate, cmd.blockSize, registry())
	if _, err := preset.Load(cmd.preset, e); err != nil {
		return err
	}

	blocks := int(cmd.seconds * float64(cmd.sampleRate) / float64(cmd.blockSize))
	if err := e.Render(context.Background(), blocks); err != nil {
		return err
	}
	if err := e.Close(); err != nil {
		return err
	}

	d := e.Diagnostics()
	fmt.Printf("Rendered %v blocks, %v faults\n", d.Blocks, d.Faults)
	return nil
}
