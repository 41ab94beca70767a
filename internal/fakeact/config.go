package fakeact

import "time"

// Config controls the synthetic combat feed.
type Config struct {
	Interval        time.Duration // time between snapshots
	Party           bool          // name the self row "<PlayerName> (YOU)" and add party members
	PlayerName      string
	Job             string
	Chocobo         bool    // prepend a "Chocobo (YOU)" pet row
	NonFiniteEvery  int     // every n-th snapshot reports NaN for the player; 0 disables
	LogLineEvery    int     // interleave an ignored LogLine event every n snapshots; 0 disables
	BaseDPS         float64 // personal rate of the first snapshot
	Step            float64 // rate increase per snapshot
	WriteBufferSize int     // small values force fragmented messages
	Script          []string
}

// DefaultConfig mirrors a party fight with a summoned chocobo.
func DefaultConfig() Config {
	return Config{
		Interval:        500 * time.Millisecond,
		Party:           true,
		PlayerName:      "Warrior Of Light",
		Job:             "Drg",
		Chocobo:         true,
		NonFiniteEvery:  7,
		LogLineEvery:    3,
		BaseDPS:         1200,
		Step:            37.5,
		WriteBufferSize: 256,
	}
}

// Option applies a configuration option to the Server.
type Option func(*Config)

// WithInterval sets the snapshot cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Interval = d
		}
	}
}

// WithParty toggles party-style key naming.
func WithParty(party bool) Option {
	return func(c *Config) { c.Party = party }
}

// WithChocobo toggles the pet row.
func WithChocobo(on bool) Option {
	return func(c *Config) { c.Chocobo = on }
}

// WithPlayer sets the self row's name and job.
func WithPlayer(name, job string) Option {
	return func(c *Config) {
		if name != "" {
			c.PlayerName = name
		}
		c.Job = job
	}
}

// WithNonFiniteEvery sets how often the player rate is NaN.
func WithNonFiniteEvery(n int) Option {
	return func(c *Config) { c.NonFiniteEvery = n }
}

// WithWriteBufferSize sets the server write buffer, which bounds frame size.
func WithWriteBufferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.WriteBufferSize = n
		}
	}
}

// WithScript replaces the generated feed with fixed messages sent once,
// in order, after the subscription arrives.
func WithScript(msgs ...string) Option {
	return func(c *Config) { c.Script = append([]string(nil), msgs...) }
}
