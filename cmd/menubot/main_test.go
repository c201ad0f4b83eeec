package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lojasmm/menubot/internal/config"
	"github.com/lojasmm/menubot/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ListenFailureClosesStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "deliveries.db")
	cfg := &config.Config{
		Port:               "-1",
		GraphAPIURL:        "http://127.0.0.1",
		GraphAPIVersion:    "v12.0",
		SendTimeout:        time.Second,
		MaxConcurrentSends: 1,
		DeliveryLogPath:    dbPath,
		DeliveryLogToken:   "reader-token",
		ShutdownTimeout:    time.Second,
	}

	err := run(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server")

	// bbolt holds an exclusive file lock while open.
	db, err := store.NewBoltStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
