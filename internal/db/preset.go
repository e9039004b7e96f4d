package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ConfigPreset is a named, operator-saved density configuration.
type ConfigPreset struct {
	Name          string          `json:"name"`
	Config        json.RawMessage `json:"config"`
	UpdatedUnixMs int64           `json:"updated_unix_ms"`
}

// SaveConfigPreset inserts or replaces the preset with p.Name.
func (db *DB) SaveConfigPreset(p ConfigPreset) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("preset name is required")
	}
	if !json.Valid(p.Config) {
		return fmt.Errorf("preset %q: config is not valid JSON", name)
	}

	query := `
		INSERT INTO config_preset (name, config_json, updated_unix_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			config_json = excluded.config_json,
			updated_unix_ms = excluded.updated_unix_ms
	`
	if _, err := db.DB.Exec(query, name, string(p.Config), p.UpdatedUnixMs); err != nil {
		return fmt.Errorf("failed to save config preset: %w", err)
	}
	return nil
}

// ConfigPreset retrieves the preset called name. Returns an error wrapping
// ErrNotFound when it does not exist.
func (db *DB) ConfigPreset(name string) (*ConfigPreset, error) {
	query := `
		SELECT name, config_json, updated_unix_ms
		FROM config_preset
		WHERE name = ?
	`
	var p ConfigPreset
	var cfg string
	err := db.DB.QueryRow(query, name).Scan(&p.Name, &cfg, &p.UpdatedUnixMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config preset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config preset: %w", err)
	}
	p.Config = json.RawMessage(cfg)
	return &p, nil
}

// ConfigPresets returns every preset ordered by name.
func (db *DB) ConfigPresets() ([]ConfigPreset, error) {
	rows, err := db.DB.Query(`
		SELECT name, config_json, updated_unix_ms
		FROM config_preset
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config presets: %w", err)
	}
	defer rows.Close()

	presets := []ConfigPreset{}
	for rows.Next() {
		var p ConfigPreset
		var cfg string
		if err := rows.Scan(&p.Name, &cfg, &p.UpdatedUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan config preset: %w", err)
		}
		p.Config = json.RawMessage(cfg)
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config presets: %w", err)
	}
	return presets, nil
}

// DeleteConfigPreset removes the preset called name.
func (db *DB) DeleteConfigPreset(name string) error {
	res, err := db.DB.Exec(`DELETE FROM config_preset WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete config preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete config preset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("config preset %q: %w", name, ErrNotFound)
	}
	return nil
}
