package sqlite

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db        *SQLiteDB
	jobs      interfaces.JobStorage
	files     interfaces.FileStorage
	tags      interfaces.TagStorage
	settings  interfaces.SettingsStorage
	decisions interfaces.DecisionStorage
	logger    arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		jobs:      NewJobStorage(db, logger),
		files:     NewFileStorage(db, logger),
		tags:      NewTagStorage(db, logger),
		settings:  NewSettingsStorage(db, logger),
		decisions: NewDecisionStorage(db, logger),
		logger:    logger,
	}, nil
}

// JobStorage returns the job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

// FileStorage returns the file storage interface
func (m *Manager) FileStorage() interfaces.FileStorage {
	return m.files
}

// TagStorage returns the tag storage interface
func (m *Manager) TagStorage() interfaces.TagStorage {
	return m.tags
}

// SettingsStorage returns the settings storage interface
func (m *Manager) SettingsStorage() interfaces.SettingsStorage {
	return m.settings
}

// DecisionStorage returns the decision storage interface
func (m *Manager) DecisionStorage() interfaces.DecisionStorage {
	return m.decisions
}

// DB returns the underlying database connection
func (m *Manager) DB() *SQLiteDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
