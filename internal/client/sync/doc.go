// Package sync implements the synchronization coordinators that keep the
// local replica converged with the home node and with contact nodes.
//
// Each collection (cards, hosted channels, one open conversation) is driven
// by an Engine: an explicit Idle/Running state machine with a pending-target
// register. Revision targets arriving while a pass is in flight are
// coalesced — only the latest survives — and the run loop re-checks the
// register after every pass, so the coordinator converges on the newest
// target with no lost updates and no redundant passes.
//
// A pass that fails at any step aborts without advancing the persisted
// cursor; the next requested revision re-derives the same delta, so no
// separate retry timer exists. Failures while cascading into one contact's
// remote collections mark only that card offsync and never block the rest
// of the batch.
package sync
