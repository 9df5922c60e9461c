// Package engine resolves a user's health status from their history and the
// active rule set. Evaluation is pure: it reads the history, the rule set and
// the context, and never mutates any of them, so one rule set can serve
// concurrent evaluations.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// maxDepth bounds the chain of named references a single evaluation may
// follow. Conditionals nested inline do not count towards it.
const maxDepth = 64

// Identity carries the acting user's attributes read by the test-user condition.
type Identity struct {
	Role         string `json:"role,omitempty" yaml:"role,omitempty"`
	StudentLevel string `json:"student_level,omitempty" yaml:"student_level,omitempty"`
}

// Context bundles everything an evaluation reads besides the history itself.
type Context struct {
	Rules    *rules.RuleSet
	Identity Identity
	// Now is the present moment; zero means time.Now().
	Now time.Time
	// Location is the zone used for midnight arithmetic; nil means time.Local.
	Location *time.Location
	// Logger receives cycle-guard warnings; nil discards them.
	Logger *zerolog.Logger
}

func (c *Context) now() time.Time {
	if c == nil || c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

func (c *Context) location() *time.Location {
	if c == nil || c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c *Context) logger() *zerolog.Logger {
	if c == nil || c.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Logger
}

// today returns the local midnight of the present moment.
func (c *Context) today() time.Time {
	return history.MidnightIn(c.now(), c.location())
}
