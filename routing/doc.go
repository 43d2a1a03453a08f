// Package routing turns raw user queries into structured intents and maps
// intents to routing decisions.
//
// The Classifier detects domains by keyword matching, picks a category from
// priority-ordered pattern families, scores complexity with fixed additive
// weights, and extracts entities with independent recognizers. The Selector
// applies the single/swarm decision table against a specialist directory.
// Both are pure with respect to their inputs: the same query and directory
// state always yield the same decision.
package routing
