// Package mocks provides centralized mock implementations for testing.
//
// This package contains mock implementations of the backend and storage
// interfaces used throughout the application, so tests across packages share
// one consistent set of fakes instead of defining inline mocks.
//
// Each mock exposes function fields (for example ProcessFn or GetByIDFn) that
// override the default behavior, and records calls for later verification:
//
//	backend := &mocks.MockBackend{
//	    NameValue:      "gpt-4",
//	    AvailableValue: true,
//	    Response:       []string{"Hello", " there"},
//	}
//	// use backend, then inspect backend.ProcessCalls.Inputs
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Document any helper methods or special functionality
package mocks
