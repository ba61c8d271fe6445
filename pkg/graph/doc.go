/*
Package graph defines the agent workflow graph model and the normalizer that
every graph must pass before it is persisted or handed to a device runtime.

A graph is a set of worker, supervisor, and tool nodes wired by directed
edges. Edges carry control flow for workers and tool nodes; supervisors route
to their member workers through config, not edges. The reserved edge target
"END" terminates a run.

Normalize is pure: it takes an untrusted candidate plus catalog snapshots and
either returns a normalized graph or the first violated rule as a
*ValidationError. Callers surface that message verbatim.
*/
package graph
