// Package cli provides authctl, an interactive operator console for the
// credkeeper HTTP API.
//
// It wires configuration, the local session database and the API client
// into a REPL. Passwords are read from the terminal without echo. The
// session (tokens of the logged-in account) is persisted after every token
// change so the next run resumes it.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
