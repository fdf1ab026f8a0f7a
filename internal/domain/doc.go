// Package domain contains the core business entities and value objects of the
// triage agent: user tasks and their lifecycle statuses, operator decisions,
// conversation records and the agent tasks that audit each orchestration run.
// It is independent of any storage engine, LLM provider or delivery mechanism.
package domain
