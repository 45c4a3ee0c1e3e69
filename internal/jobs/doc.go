// Package jobs runs subtitle mux jobs end to end.
//
// A job walks AwaitingAssets → Configuring → Running → Finalizing → Done, or
// ends in Failed. The Orchestrator checks that both assets are present,
// resolves the user's encoding preferences, builds the ffmpeg argument vector
// for softmux, hardmux, or extract, drives the ffmpeg Runner while progress
// text flows into a single editable status message, renames the output to the
// user's chosen filename, delivers it through the transport, and then deletes
// every artifact and erases the session whether delivery succeeded or not.
//
// One job runs per user at a time. A global slot pool bounds how many ffmpeg
// processes run at once; jobs beyond the limit wait and say so.
package jobs
