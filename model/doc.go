// Package model defines the provider-agnostic abstractions and helpers for
// talking to language models.
//
// Core goals:
//   - One synchronous Generate call behind a small interface
//   - Structured output: a JSON schema in the request, a typed value out,
//     with salvage of JSON embedded in chatty replies
//   - Uniform error kinds (core.ErrProvider, core.ErrRateLimited,
//     core.ErrMalformedOutput) regardless of vendor
//   - Lightweight mocking for tests (MockModel, Func)
//
// Providers (OpenAI, Anthropic, Gemini) live in sub-packages and implement
// Model so agents remain decoupled from vendor SDKs. Retries are left to the
// SDK clients; the agents never retry.
package model
