package db

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// Consumers is the registry of API callers allowed to start sessions.
type Consumers struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// newToken returns a random 128-bit token, hex encoded.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// keyDigest is what is persisted in consumers.key in place of the secret.
func keyDigest(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Register creates a consumer and returns its secret key. The key is shown
// only once; the database keeps its digest.
func (c *Consumers) Register(name string, ipFilter *string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", Validation("consumer name is required")
	}

	key := newToken()
	consumer := &Consumer{
		Name:      name,
		Key:       keyDigest(key),
		IPFilter:  ipFilter,
		CreatedAt: FormatTime(c.now()),
	}

	res := c.db.Create(consumer)
	if res.Error != nil {
		return "", newError(KindPersistence, "could not store new consumer", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", newError(KindPersistence, "could not store new consumer", nil)
	}

	c.log.Info("consumer registered", zap.String("name", name), zap.Uint("id", consumer.ID))
	return key, nil
}

// Validate resolves a secret key to the id of an active consumer.
func (c *Consumers) Validate(key string) (uint, error) {
	if key == "" {
		return 0, newError(KindNotFound, "invalid consumer key", nil)
	}

	var consumer Consumer
	err := c.db.Select("id", "deleted_at").Where("key = ?", keyDigest(key)).First(&consumer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, newError(KindNotFound, "invalid consumer key", nil)
	}
	if err != nil {
		return 0, newError(KindPersistence, "could not look up consumer", err)
	}

	if consumer.DeletedAt != nil {
		return 0, newError(KindInactive, "consumer is not active", nil)
	}
	return consumer.ID, nil
}

// Deactivate soft-deletes the active consumer with the given name.
func (c *Consumers) Deactivate(name string) error {
	res := c.db.Model(&Consumer{}).
		Where("name = ? AND deleted_at IS NULL", name).
		Update("deleted_at", FormatTime(c.now()))
	if res.Error != nil {
		return newError(KindPersistence, "could not deactivate consumer", res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindNotFound, "no active consumer named "+name, nil)
	}

	c.log.Info("consumer deactivated", zap.String("name", name))
	return nil
}
