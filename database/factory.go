/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory creates the connection manager from configuration and
// hands out the session factory bound to it.
type BaseDatabaseFactory struct {
	manager  AbstractDatabaseManager
	logger   Logger
	mu       sync.Mutex
	sessions SessionFactory
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig applies DB_* environment overrides to cfg, validates it
// and builds the connection manager. It does not connect.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	overrideFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.mu.Lock()
	f.manager = manager
	f.sessions = nil
	f.mu.Unlock()
	return manager, nil
}

type envOverride struct {
	key   string
	apply func(cfg *ConnectionConfig, v string)
}

func intEnv(set func(cfg *ConnectionConfig, n int)) func(*ConnectionConfig, string) {
	return func(cfg *ConnectionConfig, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			set(cfg, n)
		}
	}
}

func secondsEnv(set func(cfg *ConnectionConfig, d time.Duration)) func(*ConnectionConfig, string) {
	return intEnv(func(cfg *ConnectionConfig, n int) { set(cfg, time.Duration(n)*time.Second) })
}

var envOverrides = []envOverride{
	{"DB_TYPE", func(c *ConnectionConfig, v string) { c.Type = v }},
	{"DB_HOST", func(c *ConnectionConfig, v string) { c.Host = v }},
	{"DB_PORT", intEnv(func(c *ConnectionConfig, n int) { c.Port = n })},
	{"DB_USERNAME", func(c *ConnectionConfig, v string) { c.Username = v }},
	{"DB_PASSWORD", func(c *ConnectionConfig, v string) { c.Password = v }},
	{"DB_NAME", func(c *ConnectionConfig, v string) { c.DBName = v }},
	{"DB_SSLMODE", func(c *ConnectionConfig, v string) { c.SSLMode = v }},
	{"DB_MAX_IDLE_CONNS", intEnv(func(c *ConnectionConfig, n int) { c.MaxIdleConns = n })},
	{"DB_MAX_OPEN_CONNS", intEnv(func(c *ConnectionConfig, n int) { c.MaxOpenConns = n })},
	{"DB_CONN_MAX_LIFETIME", secondsEnv(func(c *ConnectionConfig, d time.Duration) { c.ConnMaxLifetime = d })},
	{"DB_ENABLE_RECONNECT", func(c *ConnectionConfig, v string) { c.EnableReconnect = v == "true" }},
	{"DB_RECONNECT_INTERVAL", secondsEnv(func(c *ConnectionConfig, d time.Duration) { c.ReconnectInterval = d })},
	{"DB_ENABLE_QUERY_LOG", func(c *ConnectionConfig, v string) { c.EnableQueryLog = v == "true" }},
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *ConnectionConfig) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.key); v != "" {
			o.apply(cfg, v)
		}
	}
}

// InitializeDatabase connects the manager created by CreateFromConfig.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not connected.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// GetSessionFactory returns the session factory over the connected
// database, or nil if not connected. The factory follows the manager
// across reconnects.
func (f *BaseDatabaseFactory) GetSessionFactory() SessionFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.manager == nil || f.manager.GetDB() == nil {
		return nil
	}
	if f.sessions == nil {
		f.sessions = NewManagedSessionFactory(f.manager)
	}
	return f.sessions
}

func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	f.mu.Lock()
	f.sessions = nil
	f.mu.Unlock()
	return f.manager.Disconnect()
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
