// Package journal records every supervisor run in a SQLite database
// (journal.db in the application data directory) so the control server can
// show launch history across restarts.
package journal
