// Package main hosts the submux CLI entrypoint and command graph.
//
// The Cobra command tree covers the long-running HTTP service (serve),
// one-shot local jobs (mux, extract, subtitle), and operator tooling
// (status, session, config, notify). Configuration resolution and .env
// loading happen once in the root command so subcommands only deal with
// their own flags.
package main
