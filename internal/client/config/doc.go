// Package config builds the authctl Config.
//
// Values are layered: LoadDefaults first, then the JSON file named by -c
// (or -config) if any, then the -a, -s and -t flags. A later layer only
// overrides fields it actually sets.
//
// Flags:
//
//	-a  base URL of the credkeeper HTTP API, e.g. https://auth.example.com
//	-s  SQLite file holding the saved session
//	-t  per-request timeout in seconds
//
// A JSON file looks like:
//
//	{"server_url": "http://127.0.0.1:8080", "session_db": "authctl.db", "request_timeout": "10s"}
package config
