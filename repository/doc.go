// Package repository provides a generic repository over Bun in which every
// operation runs in its own unit of work: CRUD, field search, filtered
// listing, pagination and custom work against the live transaction.
package repository
