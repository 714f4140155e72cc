// FILE: dynconf/doc.go

// Package dynconf provides runtime configuration access for Go applications:
// an ordered composite of sources (files, environment variables,
// command-line arguments, in-memory overrides), a background reloader that
// re-reads sources and diffs values, and live typed properties that notify
// subscribers when their value changes.
//
// Features:
//   - Multiple configuration sources with first-match-wins precedence
//   - Scheduled or manual refresh with per-key change detection
//   - Typed live properties (string, int64, float64, bool, duration, slice)
//     with defaults and update callbacks
//   - ${key} interpolation in string values
//   - Struct decoding with tag support and validation
//   - Stale-but-available reads when a source fails to reload
//   - Builder pattern for easy initialization
//
// Quick Start:
//
//	rt, err := dynconf.NewBuilder().
//	    WithArgs(os.Args[1:]).
//	    WithEnv("MYAPP_").
//	    WithFile("config.toml").
//	    WithDefaults(map[string]any{"server.port": 8080}).
//	    WithInterval(30 * time.Second).
//	    Build(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	port := rt.Properties.Property("server.port").AsInt64(8080)
//	current, _ := port.Get()
//	token := port.OnUpdated(func(v int64) {
//	    // react to the new value
//	})
//	defer port.Remove(token)
//
// Precedence is exactly the order sources are added: in the example above a
// command-line flag overrides an environment variable, which overrides the
// file, which overrides the defaults.
//
// Thread Safety:
// All operations are safe for concurrent use. Reads resolve against
// atomically swapped snapshots, so they never block on a refresh cycle.
package dynconf
