// Package gemini provides a generation backend on Google's Gemini API.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's routing and orchestration logic to the
// external Gemini service through the google.golang.org/genai client.
//
// Key components:
//
// 1. Streamer:
//   - Opens one streaming GenerateContent call per prompt
//   - Yields candidate text as it arrives
//
// 2. Error Handling:
//   - Classifies rate limits, server errors and transport failures as transient
//   - Reports safety blocks and malformed responses as permanent
//
// Prompt rendering and retry live in the generation package; NewBackend
// wires both around a Streamer.
package gemini
