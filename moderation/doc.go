// Moderation automation for a community chat server.
//
// This package (`github.com/avengersguard/guard/moderation`) wires together the punishment ledger, the sanction scheduler with its expiry timers, the private voice room lifecycle, protective guards, and moderator commands. `Engine` is the entry point: platform events are handed to its `Process*` methods, which are expected to run one at a time on the control thread provided by `dispatch.Loop`.
//
// Nothing is persisted; all state is lost on restart. See `cmd/aguard` for a daemon built on this package.
package moderation
