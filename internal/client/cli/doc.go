// Package cli is the interactive front end of the pain tracker client: a
// small REPL over the entry and auth services. All writes land locally
// first; syncing happens in the background and on demand.
package cli
