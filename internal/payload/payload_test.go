package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleStaysInPools(t *testing.T) {
	g := NewGenerator()

	prompts := toSet(defaultPrompts)
	sizes := toSet(defaultSizes)
	backends := toSet(defaultBackends)

	for i := 0; i < 1000; i++ {
		p := g.Sample()
		assert.Contains(t, prompts, p.Prompt)
		assert.Contains(t, sizes, p.Size)
		assert.Contains(t, backends, p.Backend)
	}
}

// Over many samples every pool entry should show up, including the
// "no backend hint" case.
func TestSampleCoversPools(t *testing.T) {
	g := NewGeneratorWithPools(
		[]string{"a", "b"},
		[]string{"256x256", "512x512"},
		[]string{"", "flux"},
	)

	seenBackend := map[string]int{}
	seenSize := map[string]int{}
	for i := 0; i < 2000; i++ {
		p := g.Sample()
		seenBackend[p.Backend]++
		seenSize[p.Size]++
	}

	assert.Greater(t, seenBackend[""], 0, "unhinted backend must occur")
	assert.Greater(t, seenBackend["flux"], 0)
	assert.Len(t, seenSize, 2)

	// Uniform-ish: each of two choices should be well away from 0% or 100%.
	assert.Greater(t, seenBackend[""], 500)
	assert.Less(t, seenBackend[""], 1500)
}

func toSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
