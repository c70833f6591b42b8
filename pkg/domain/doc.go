// Package domain contains the core value types of the GOI orchestration
// engine: todo lists and their items, checkpoints and checkpoint rules,
// controller state, parsed intents and clarification state, lifecycle
// events, and the session snapshot used for persistence.
//
// The package is dependency-free on purpose. Behavior lives in the rule
// engine, the control manager, the intent pipeline and the agent loop;
// domain only defines the shapes they exchange.
package domain
