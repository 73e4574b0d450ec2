package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/patch"
)

func TestRegistry(t *testing.T) {
	r := patch.NewRegistry()
	r.Add(patch.Prototype{Kind: "b"})
	r.Add(patch.Prototype{Kind: "a"})

	p, err := r.Get("a")
	assert.NoError(t, err)
	assert.Equal(t, "a", p.Kind)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, patch.ErrUnknownKind)

	assert.Equal(t, []string{"a", "b"}, r.Kinds())
}

func TestRegistryDuplicate(t *testing.T) {
	r := patch.NewRegistry()
	r.Add(patch.Prototype{Kind: "a"})
	assert.Panics(t, func() {
		r.Add(patch.Prototype{Kind: "a"})
	})
}

func TestDefaultParams(t *testing.T) {
	p := patch.Prototype{
		Params: []patch.ParamSpec{
			{Name: "level", Min: 0, Max: 2, Default: 1},
			{Name: "mix", Min: 0, Max: 1},
		},
	}
	assert.Equal(t, patch.Params{"level": 1, "mix": 0}, p.DefaultParams())
}

func TestParamsValue(t *testing.T) {
	p := patch.Params{"level": 0.5}
	assert.Equal(t, 0.5, p.Value("level", 1))
	assert.Equal(t, 1.0, p.Value("missing", 1))
}

func TestConfig(t *testing.T) {
	c := patch.Config{"path": "file.wav", "order": 4, "cutoff": 100.5}
	assert.Equal(t, "file.wav", c.String("path"))
	assert.Equal(t, "", c.String("missing"))
	assert.Equal(t, 4.0, c.Float("order", 0))
	assert.Equal(t, 100.5, c.Float("cutoff", 0))
	assert.Equal(t, 7.0, c.Float("missing", 7))
}

func TestConfigFloats(t *testing.T) {
	c := patch.Config{
		"taps":  []interface{}{1.0, 2, "skipped", 0.5},
		"path":  "file.wav",
		"empty": []interface{}{},
	}
	assert.Equal(t, []float64{1, 2, 0.5}, c.Floats("taps"))
	assert.Empty(t, c.Floats("empty"))
	assert.Nil(t, c.Floats("path"))
	assert.Nil(t, c.Floats("missing"))
}
