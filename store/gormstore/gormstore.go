// Package gormstore provides the relational identity store, backed by gorm.
// Identities are flattened into rows; attribute values round-trip through
// JSON, so numeric values come back as float64 and times as RFC 3339
// strings compared by their encoded form.
package gormstore

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/idmkit/idmkit/config"
	"github.com/idmkit/idmkit/router"
	"github.com/idmkit/idmkit/store"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector
// for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	dialectorsMu sync.RWMutex
	dialectors   = make(map[string]DialectorOpener)
)

// RegisterDialector adds a database driver to the registry. sqlite,
// postgres and mysql are registered out of the box.
func RegisterDialector(name string, open DialectorOpener) {
	dialectorsMu.Lock()
	defer dialectorsMu.Unlock()
	dialectors[name] = open
}

func init() {
	RegisterDialector("sqlite", sqlite.Open)
	RegisterDialector("postgres", postgres.Open)
	RegisterDialector("mysql", mysql.Open)

	router.RegisterBackend("sql", func(cfg *config.Config) (store.IdentityStore, error) {
		return Open(cfg.DBType, cfg.DSN)
	})
}

// Store is a relational identity store. Safe for concurrent use; every
// write runs in its own transaction.
type Store struct {
	db *gorm.DB
}

// Open connects using a registered dialector and migrates the schema.
func Open(dbType, dsn string) (*Store, error) {
	dialectorsMu.RLock()
	open, ok := dialectors[dbType]
	dialectorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gormstore: unknown database type %q", dbType)
	}

	db, err := gorm.Open(open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(
		&gormIdentity{},
		&gormAttribute{},
		&gormMembership{},
		&gormGrant{},
		&gormCredential{},
		&gormPartition{},
	)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Capabilities() store.CapabilitySet {
	return store.Capabilities(store.AllCapabilities()...)
}

var _ store.IdentityStore = (*Store)(nil)
