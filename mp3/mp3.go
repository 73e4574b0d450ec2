// Package mp3 provides a recorder node kind encoding the stream to an
// mp3 file with lame.
package mp3

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/viert/lame"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// Register adds the mp3 kinds to the registry.
func Register(r *patch.Registry) {
	r.Add(sinkProto)
}

var sinkProto = patch.Prototype{
	Kind:        "mp3sink",
	Description: "Record the stream to an mp3 file; intended for offline rendering",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Allocate:    allocateSink,
}

func allocateSink(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, errors.New("mp3sink: path is required")
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	wr := lame.NewWriter(file)
	wr.Encoder.SetBitrate(int(cfg.Float("bitrate", 192)))
	wr.Encoder.SetQuality(int(cfg.Float("quality", 2)))
	wr.Encoder.SetNumChannels(1)
	wr.Encoder.SetInSamplerate(sampleRate)
	wr.Encoder.InitParams()
	return &sink{file: file, wr: wr, pcm: make([]byte, 2*blockSize)}, nil
}

type sink struct {
	file *os.File
	wr   *lame.LameWriter
	// preallocated int16 frame buffer, reused every block
	pcm []byte
}

func (s *sink) Process(in, out []signal.Block, p patch.Params) error {
	for i, v := range in[0] {
		binary.LittleEndian.PutUint16(s.pcm[2*i:], uint16(int16(v*32767)))
	}
	_, err := s.wr.Write(s.pcm[:2*len(in[0])])
	return err
}

// Flush finalizes the encoder and closes the file.
func (s *sink) Flush() error {
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
