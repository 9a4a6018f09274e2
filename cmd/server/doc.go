// Package main is the entry point for the judgebox executor.
//
// The executor accepts code submissions over REST (and optionally MCP),
// compiles and runs each one inside a throwaway sandbox against the named
// problem's test cases, and reports results or errors back to the
// coordinator over HTTP.
//
// Components are wired with Uber's fx: configuration comes from viper,
// logging from zap, and the pipeline is started before the intake surfaces
// and stopped after them.
package main
