// Package types defines the core data model shared across SwarmRoute:
// classified intents, routing decisions, handoff records, session chains,
// and the structured error taxonomy.
//
// All types here are plain data. Behavior lives in the routing, handoff,
// orchestrator, and session packages.
package types
