// Package numbering issues human-readable transaction numbers of the form
// PREFIX-YYYYMMDD-NNNN.
package numbering

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

const (
	// DefaultAttempts bounds collision retries.
	DefaultAttempts = 5
	suffixSpace     = 10000
)

// ExistsFunc reports whether number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// Options configures a Generator. Zero values fall back to defaults.
type Options struct {
	Attempts int
	Now      func() time.Time
	Intn     func(n int) int
}

// Generator produces candidate numbers and checks them against the store.
type Generator struct {
	attempts int
	now      func() time.Time
	intn     func(n int) int
}

// NewGenerator builds a Generator.
func NewGenerator(opts Options) *Generator {
	g := &Generator{attempts: opts.Attempts, now: opts.Now, intn: opts.Intn}
	if g.attempts <= 0 {
		g.attempts = DefaultAttempts
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.intn == nil {
		g.intn = rand.IntN
	}
	return g
}

// Generate returns the first candidate that exists reports as free. The date
// stamp is taken once so every attempt shares it.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "number prefix is required")
	}
	if exists == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "uniqueness check required")
	}

	date := g.now().UTC().Format("20060102")
	for attempt := 0; attempt < g.attempts; attempt++ {
		candidate := Format(prefix, date, g.intn(suffixSpace))
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeIdentifierExhausted, "could not allocate a unique transaction number").
		WithDetails(map[string]any{"prefix": prefix, "attempts": g.attempts})
}

// Format renders one candidate number.
func Format(prefix, date string, suffix int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date, suffix)
}
