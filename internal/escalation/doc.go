// Package escalation decides what happens after a pipeline stage has
// exhausted its retries.
//
// The policy is a pure decision: classify the failure, maybe run a
// diagnosis, maybe file a ticket. It never retries work and never blocks
// the calling chain on the outcome of a ticket sink.
package escalation
