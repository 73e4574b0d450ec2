// Package device runs an engine against the default portaudio duplex
// stream.
package device

import (
	"context"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/patch/engine"
	"github.com/dudk/patch/log"
)

// Duplex drives the engine from the default input and output device.
type Duplex struct {
	engine Engine
	stream *portaudio.Stream
	logger log.Logger
}

// Engine is the block processor a duplex stream drives. Satisfied by
// engine.Engine.
type Engine interface {
	BlockSize() int
	SampleRate() int
	ProcessBlock(in, out []float32)
}

// assert interface compliance
var _ Engine = (*engine.Engine)(nil)

// Open initializes portaudio and opens the default duplex stream with
// the engine's negotiated format. The stream is not started yet.
func Open(e Engine) (*Duplex, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	d := &Duplex{engine: e, logger: log.GetLogger()}
	stream, err := portaudio.OpenDefaultStream(
		1,
		1,
		float64(e.SampleRate()),
		e.BlockSize(),
		d.callback,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	d.stream = stream
	return d, nil
}

func (d *Duplex) callback(in, out []float32) {
	d.engine.ProcessBlock(in, out)
}

// Start begins audio processing.
func (d *Duplex) Start() error {
	return d.stream.Start()
}

// Run starts the stream and blocks until the context is done.
func (d *Duplex) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return d.Close()
}

// Close stops the stream and releases portaudio.
func (d *Duplex) Close() error {
	errStop := d.stream.Stop()
	if err := d.stream.Close(); err != nil {
		d.logger.Warn("close stream: ", err)
	}
	if err := portaudio.Terminate(); err != nil {
		d.logger.Warn("terminate portaudio: ", err)
	}
	return errStop
}
