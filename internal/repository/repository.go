// Package repository maps domain records to table rows.
//
// Repositories talk to a table.Client, never to SQL directly, so the same
// code runs against the pgx-backed client in production and the in-memory
// client in tests.
package repository
