// Package store keeps the history of analysis runs in SQLite, through sqlx
// and the pure-Go modernc.org/sqlite driver.
package store
