package dispatch

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// NicknamePlaceholder is replaced with the recipient's display name.
const NicknamePlaceholder = "{nickname}"

// randomGreetingChance is the probability of drawing from the random pool
// instead of the default template.
const randomGreetingChance = 0.7

// Fill substitutes the nickname placeholder in template.
func Fill(template, nickname string) string {
	return strings.ReplaceAll(template, NicknamePlaceholder, nickname)
}

// Greeter picks a greeting template for messages sent without a body.
type Greeter struct {
	mu              sync.Mutex
	rng             *rand.Rand
	defaultTemplate string
	pool            []string
}

// NewGreeter builds a greeter. A nil rng uses a randomly seeded source.
func NewGreeter(defaultTemplate string, pool []string, rng *rand.Rand) *Greeter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Greeter{
		rng:             rng,
		defaultTemplate: defaultTemplate,
		pool:            append([]string(nil), pool...),
	}
}

// Template returns the chosen template without substitution.
func (g *Greeter) Template() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pool) > 0 && g.rng.Float64() < randomGreetingChance {
		return g.pool[g.rng.IntN(len(g.pool))]
	}
	return g.defaultTemplate
}

// Pick returns a greeting addressed to nickname.
func (g *Greeter) Pick(nickname string) string {
	return Fill(g.Template(), nickname)
}
