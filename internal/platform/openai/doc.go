// Package openai provides a generation backend for OpenAI-compatible chat
// completion endpoints. Responses are consumed as server-sent events so text
// reaches the caller as it is produced.
package openai
