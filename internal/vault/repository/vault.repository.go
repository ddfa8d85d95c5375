package repository

import (
	"database/sql"
	"encoding/json"

	"writervault/internal/vault/model"
	"writervault/pkg/logger"
)

type VaultRepository struct {
	DB *sql.DB
}

func NewVaultRepository(db *sql.DB) *VaultRepository {
	return &VaultRepository{DB: db}
}

// Load returns the user's persisted vault. A missing row or a row whose
// JSON no longer parses is absorbed into a fresh default vault so the
// application always starts; the corrupt case is logged, not surfaced.
func (r *VaultRepository) Load(userID string) *model.Vault {
	var data []byte
	err := r.DB.QueryRow("SELECT data FROM vaults WHERE user_id = $1", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Default()
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load vault for user %s: %v", userID, err)
		return model.Default()
	}

	v := model.Default()
	if err := json.Unmarshal(data, v); err != nil {
		logger.Sugar.Warnf("Vault for user %s is unreadable, starting fresh: %v", userID, err)
		return model.Default()
	}
	return v
}

// Save overwrites the user's entire vault row. Every mutation saves the
// whole aggregate; there is no partial update.
func (r *VaultRepository) Save(userID string, v *model.Vault) error {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Failed to marshal vault for user %s: %v", userID, err)
		return err
	}
	_, err = r.DB.Exec(`INSERT INTO vaults (user_id, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET data = $2, updated_at = NOW()`, userID, data)
	if err != nil {
		logger.Sugar.Errorf("Failed to save vault for user %s: %v", userID, err)
	}
	return err
}
