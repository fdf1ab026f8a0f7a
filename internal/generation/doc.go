// Package generation defines the capability boundary between the application
// core and the text-generation backends (Gemini, OpenAI-compatible services).
// A Backend produces a lazy sequence of text fragments for an input; optional
// Summarizer and ActionPrompter interfaces expose the specialized prompts the
// orchestrator uses. Concrete backends live under internal/platform.
package generation
