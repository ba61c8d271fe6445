/*
Package ports defines the driven ports (interfaces) for the agentgraph core.

These interfaces decouple the graph transactor and API from external
implementations, allowing the core to work with various persistence backends,
catalog registries, and downstream dispatchers.

# Key Interfaces

  - GraphStore / GraphTx: Row-level persistence for graphs, nodes, tool
    associations, edges, and device assignment, with atomic transactions.
  - CatalogSource: Read-only registry of valid model and tool identifiers.
  - Dispatcher: Post-commit event hand-off to the job/event queue.
*/
package ports
