// Package ports defines the driven-side interfaces of the GOI engine:
// the planner/executor capabilities the agent loop invokes, the LLM
// invoker used by the intent parser's fallback path, session state
// persistence, distributed locking, and event publication.
//
// Adapters implement these interfaces; the engine core depends only on
// the contracts here.
package ports
