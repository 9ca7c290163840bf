package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/astrid-audio/astrid/internal/astriderr"
)

// Store wraps a GORM handle to the voices table. A nil *Store (returned
// when SessionDSN is empty) is a valid no-op: every method becomes a
// cheap early-return, since session logging is an optional, external
// collaborator the core must not hard-depend on.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the voices table. An empty dsn
// disables session logging: Open returns (nil, nil) and every Store
// method on the nil receiver is a no-op.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "session.Open", fmt.Errorf("open sqlite: %w", err))
	}

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "session.Open", fmt.Errorf("enable WAL: %w", err))
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010000",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Voice{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&Voice{})
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.migrate", err)
	}
	return nil
}

// instrumentNameValid rejects any instrument name containing a path
// separator. Instrument names flow into the voices table via
// parameterized queries only, never interpolated SQL, but a path
// separator in a name used elsewhere to build filesystem paths would be
// a traversal risk, so the same rule is applied here too.
func instrumentNameValid(name string) bool {
	return !strings.ContainsAny(name, "/\\")
}

// RecordMessage inserts a new voice row on message receipt (PLAY/TRIGGER).
func (s *Store) RecordMessage(voiceID uint64, instrumentName, params string, timestamp float64) error {
	if s == nil {
		return nil
	}
	if !instrumentNameValid(instrumentName) {
		return astriderr.New(astriderr.BadMessage, "session.RecordMessage", fmt.Errorf("instrument name %q contains a path separator", instrumentName))
	}

	v := Voice{
		ID:             voiceID,
		Created:        time.Now(),
		Active:         false,
		Timestamp:      timestamp,
		InstrumentName: instrumentName,
		Params:         params,
	}
	if err := s.db.Create(&v).Error; err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.RecordMessage", err)
	}
	return nil
}

// RecordRender sets active=1 on first render, and bumps last_render and
// render_count on every render thereafter.
func (s *Store) RecordRender(voiceID uint64) error {
	if s == nil {
		return nil
	}
	now := time.Now()
	err := s.db.Model(&Voice{}).Where("id = ?", voiceID).Updates(map[string]any{
		"active":       true,
		"started":      gorm.Expr("COALESCE(started, ?)", now),
		"last_render":  now,
		"render_count": gorm.Expr("render_count + 1"),
	}).Error
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.RecordRender", err)
	}
	return nil
}

// RecordStop sets active=0 and ended on a STOP_VOICE.
func (s *Store) RecordStop(voiceID uint64) error {
	if s == nil {
		return nil
	}
	now := time.Now()
	err := s.db.Model(&Voice{}).Where("id = ?", voiceID).Updates(map[string]any{
		"active": false,
		"ended":  now,
	}).Error
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.RecordStop", err)
	}
	return nil
}

// Get returns the voice row for voiceID.
func (s *Store) Get(voiceID uint64) (*Voice, error) {
	if s == nil {
		return nil, astriderr.New(astriderr.NotFound, "session.Get", fmt.Errorf("session logging disabled"))
	}
	var v Voice
	if err := s.db.Where("id = ?", voiceID).First(&v).Error; err != nil {
		return nil, astriderr.New(astriderr.NotFound, "session.Get", err)
	}
	return &v, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.Close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "session.Close", err)
	}
	return nil
}
