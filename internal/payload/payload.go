package payload

import (
	"math/rand"
)

// Payload is one generation request's workload: a prompt, an image size and
// an optional backend hint ("" means let the gateway route).
type Payload struct {
	Prompt  string
	Size    string
	Backend string
}

// Generator samples payloads uniformly and independently per field from
// fixed pools. Safe for concurrent use. There is no seeding contract;
// callers must only rely on the aggregate distribution.
type Generator struct {
	prompts  []string
	sizes    []string
	backends []string // includes "" for "no hint"
}

var defaultPrompts = []string{
	"a cyberpunk city at night with neon signs",
	"a watercolor painting of a mountain lake at dawn",
	"a photorealistic portrait of an astronaut on mars",
	"an isometric illustration of a cozy coffee shop",
	"a macro photo of a dewdrop on a spider web",
	"a renaissance oil painting of a cat wearing armor",
	"a minimalist poster of a sailboat on a calm sea",
	"a fantasy castle floating above the clouds",
}

var defaultSizes = []string{
	"256x256",
	"512x512",
	"1024x1024",
}

// Backend hints the gateway understands, plus the unhinted case weighted
// equally with the concrete choices.
var defaultBackends = []string{
	"",
	"stable-diffusion",
	"flux",
}

func NewGenerator() *Generator {
	return &Generator{
		prompts:  defaultPrompts,
		sizes:    defaultSizes,
		backends: defaultBackends,
	}
}

// NewGeneratorWithPools builds a generator over caller-provided pools.
// Empty pools fall back to the defaults.
func NewGeneratorWithPools(prompts, sizes, backends []string) *Generator {
	g := NewGenerator()
	if len(prompts) > 0 {
		g.prompts = prompts
	}
	if len(sizes) > 0 {
		g.sizes = sizes
	}
	if len(backends) > 0 {
		g.backends = backends
	}
	return g
}

// Sample draws one payload.
func (g *Generator) Sample() Payload {
	return Payload{
		Prompt:  g.prompts[rand.Intn(len(g.prompts))],
		Size:    g.sizes[rand.Intn(len(g.sizes))],
		Backend: g.backends[rand.Intn(len(g.backends))],
	}
}
