package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"briefly/internal/domain"
)

// ConfigStore implements domain.ConfigStore using SQLite.
type ConfigStore struct {
	db *sql.DB
}

// NewConfigStore returns a ConfigStore backed by the shared database.
func NewConfigStore(d *DB) *ConfigStore {
	return &ConfigStore{db: d.db}
}

func (s *ConfigStore) Load(_ context.Context, userID string) (*domain.UserConfig, error) {
	row := s.db.QueryRow(
		"SELECT user_id, suspended, agents_active, agents, vip_senders FROM user_configs WHERE user_id = ?", userID,
	)

	var cfg domain.UserConfig
	var suspended, active int
	var agentsStr, vipStr string
	if err := row.Scan(&cfg.UserID, &suspended, &active, &agentsStr, &vipStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: user config %q", domain.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: load user config: %v", domain.ErrPersistence, err)
	}
	cfg.Suspended = suspended != 0
	cfg.AgentsActive = active != 0
	if err := json.Unmarshal([]byte(agentsStr), &cfg.Agents); err != nil {
		return nil, fmt.Errorf("unmarshal agent settings: %w", err)
	}
	if err := json.Unmarshal([]byte(vipStr), &cfg.VIPSenders); err != nil {
		return nil, fmt.Errorf("unmarshal vip senders: %w", err)
	}
	return &cfg, nil
}

func (s *ConfigStore) Save(_ context.Context, cfg *domain.UserConfig) error {
	agentsJSON, err := json.Marshal(cfg.Agents)
	if err != nil {
		return fmt.Errorf("marshal agent settings: %w", err)
	}
	vipJSON, err := json.Marshal(cfg.VIPSenders)
	if err != nil {
		return fmt.Errorf("marshal vip senders: %w", err)
	}

	suspended, active := 0, 0
	if cfg.Suspended {
		suspended = 1
	}
	if cfg.AgentsActive {
		active = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO user_configs (user_id, suspended, agents_active, agents, vip_senders, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			suspended = excluded.suspended,
			agents_active = excluded.agents_active,
			agents = excluded.agents,
			vip_senders = excluded.vip_senders,
			updated_at = excluded.updated_at`,
		cfg.UserID, suspended, active, string(agentsJSON), string(vipJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: save user config: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *ConfigStore) SetAgentsActive(_ context.Context, userID string, active bool) error {
	val := 0
	if active {
		val = 1
	}
	res, err := s.db.Exec(
		"UPDATE user_configs SET agents_active = ?, updated_at = ? WHERE user_id = ?",
		val, time.Now().UTC().Format(time.RFC3339Nano), userID,
	)
	if err != nil {
		return fmt.Errorf("%w: set agents active: %v", domain.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: user config %q", domain.ErrNotFound, userID)
	}
	return nil
}

func (s *ConfigStore) ListActiveUsers(_ context.Context) ([]string, error) {
	rows, err := s.db.Query("SELECT user_id FROM user_configs WHERE agents_active = 1 ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("%w: list active users: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

var _ domain.ConfigStore = (*ConfigStore)(nil)
