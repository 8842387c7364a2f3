// Package database provides the session provider used by the repository
// layer: configuration, connection management, sessions bound to pooled
// connections, logging, SQL error classification and table bootstrap,
// built on top of Bun.
package database
