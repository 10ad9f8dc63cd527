package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storehub/internal/platform/config"
)

// TenantDBPool keeps one SQLite database per organization. Synced orders,
// customers and products live there, keyed by store.
type TenantDBPool struct {
	pools  map[string]*sql.DB
	mu     sync.RWMutex
	config config.TenantDBConfig
}

func NewTenantDBPool(cfg config.TenantDBConfig) *TenantDBPool {
	return &TenantDBPool{
		pools:  make(map[string]*sql.DB),
		config: cfg,
	}
}

// PathFor returns the database file used for an organization.
func (p *TenantDBPool) PathFor(orgID string) string {
	return filepath.Join(p.config.BasePath, orgID+".db")
}

// Get returns the organization's database, opening and migrating it on
// first use.
func (p *TenantDBPool) Get(orgID string) (*sql.DB, error) {
	if orgID == "" {
		return nil, fmt.Errorf("tenant database: empty organization id")
	}

	p.mu.RLock()
	if db, exists := p.pools[orgID]; exists {
		p.mu.RUnlock()
		return db, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if db, exists := p.pools[orgID]; exists {
		return db, nil
	}

	if err := os.MkdirAll(p.config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("tenant database: %w", err)
	}

	db, err := sql.Open("sqlite3", sqliteDSN(p.PathFor(orgID)))
	if err != nil {
		return nil, err
	}

	if p.config.MaxConnectionsPerOrg > 0 {
		db.SetMaxOpenConns(p.config.MaxConnectionsPerOrg)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := MigrateTenant(db, Up); err != nil {
		db.Close()
		return nil, fmt.Errorf("tenant database %s: %w", orgID, err)
	}

	p.pools[orgID] = db
	return db, nil
}

func (p *TenantDBPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, db := range p.pools {
		db.Close()
	}
	p.pools = make(map[string]*sql.DB)
}
