// Package pkg provides the core libraries for stackseed.
//
// # Overview
//
// Stackseed turns a list of 0install feeds into a ready-to-build development
// workspace: one git repository holding every selected component as a
// submodule, plus a CMake project that builds them together.
//
// # Architecture
//
// The data flow through stackseed:
//
//	Feed URIs
//	    ↓
//	[feedcache] + [augment]   (load feeds, add placeholder implementations)
//	    ↓
//	[solver] + [resolve]      (solve each feed, merge into one selection set)
//	    ↓
//	[workspace]               (plan, create, concurrent fetch and checkout)
//	    ↓
//	[cmake]                   (top-level and dependencies CMakeLists.txt)
//	    ↓
//	committed workspace
//
// [pipeline] wires these stages together for the CLI.
//
// # Main Packages
//
// ## Feed Model
//
// [feed] - Feeds, implementations, dependencies, version ordering and the
// 0install XML parser. Repository and revision metadata live in the
// http://ryppl.org/2012 namespace.
//
// [arch] - Architecture strings and host-specific ranking, including the
// "missing" machine used by placeholders.
//
// [augment] - Adds a placeholder implementation for every binary that is not
// available locally, so the solver can pick "build it from source".
//
// ## Resolution
//
// [feedcache] - Loads feeds from local files or over HTTP and persists them
// in a [cache.Cache] (file, Redis or none). Answers staleness questions.
//
// [solver] - Greedy breadth-first solver for the develop command.
//
// [selection] - Selection sets and the conflict-checking merge.
//
// [resolve] - Offline-first resolution: refresh only when a used feed is
// stale.
//
// ## Materialization
//
// [vcs] - git driver. Every command runs in an explicit directory.
//
// [workspace] - Plans working copies and checks them out on a bounded
// worker pool.
//
// [cmake] - Generates the two build descriptors.
//
// ## Supporting Packages
//
// [depgraph] - DOT and SVG rendering of a selection set.
//
// [errors] - Coded errors and input validation.
//
// [observability] - Hooks for solve, checkout, cache and HTTP events.
//
// [buildinfo] - Version information set at link time.
//
// # Testing
//
//	go test ./...                        # All tests
//	STACKSEED_TEST_REDIS=redis://localhost:6379/0 go test ./pkg/cache/...
//
// Tests that need a git binary skip when it is not installed.
package pkg
