package storage

import (
	"errors"
	"strings"

	logx "istubot/pkg/logx"
)

// Open initializes the configured store. An empty or "none" driver
// returns the in-memory store so the bot still runs without a database.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none", "memory":
		return newMemStore(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
