// Package builders provides a fluent test harness for platform
// scenarios: an Env wraps a throwaway store and pipeline runner, and
// the builders seed users and BOOMs without repeating boilerplate in
// every test.
//
// Typical use:
//
//	env := builders.NewEnv(t)
//	alice := env.User("+221770000001").Balance(50_000).Create()
//	drop := env.Boom("DROP-1").BasePrice(10_000).Editions(5).Create()
//	purchase := env.Purchase(alice, drop, 1)
package builders
