//go:build vst2

package main

import (
	"github.com/dudk/patch/vst2"
)

func init() {
	extraKinds = append(extraKinds, vst2.Register)
}
