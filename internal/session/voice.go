// Package session persists the optional voice lifecycle log: an SQL table
// recording, for each voice_id, when it was created, started, last
// rendered, and ended. Any SQL backend with WAL support is acceptable;
// this implementation uses sqlite via glebarez/sqlite (pure Go, no cgo)
// plus gormigrate for schema evolution.
package session

import (
	"time"
)

// Voice is the GORM model backing the voices table: created, started,
// last_render, ended, active, timestamp, id, instrument_name, params,
// render_count.
type Voice struct {
	ID             uint64 `gorm:"primaryKey;column:id"`
	Created        time.Time
	Started        *time.Time
	LastRender     *time.Time
	Ended          *time.Time
	Active         bool
	Timestamp      float64
	InstrumentName string `gorm:"index"`
	Params         string
	RenderCount    uint64
}

func (Voice) TableName() string { return "voices" }
