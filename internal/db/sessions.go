package db

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClickAction is the event action counted by Sessions.Find.
const ClickAction = "click"

// SessionColumns is the allow-list used to filter and sort session queries.
var SessionColumns = Columns{
	Filters: []FilterKey{
		{Param: "ip", Column: "sessions.ip", Match: MatchExact},
		{Param: "date", Column: "sessions.started_at", Match: MatchPrefix},
		{Param: "consumer", Column: "sessions.consumer_id", Match: MatchInteger},
	},
	Sortable: map[string]string{
		"id":          "sessions.id",
		"token":       "sessions.token",
		"ip":          "sessions.ip",
		"started_at":  "sessions.started_at",
		"stopped_at":  "sessions.stopped_at",
		"consumer_id": "sessions.consumer_id",
		"clicks":      "clicks",
		"last_click":  "last_click",
	},
}

// SessionSummary is a session together with its click statistics.
type SessionSummary struct {
	ID         uint    `json:"id"`
	Token      string  `json:"token"`
	IP         string  `gorm:"column:ip" json:"ip"`
	StartedAt  string  `json:"started_at"`
	StoppedAt  *string `json:"stopped_at"`
	ConsumerID uint    `json:"consumer_id"`
	Clicks     int64   `json:"clicks"`
	LastClick  *string `json:"last_click"`
}

// Sessions is the ledger of session lifecycles.
type Sessions struct {
	db  *gorm.DB
	log *zap.Logger
}

// Start opens a session for a consumer and returns its token.
func (s *Sessions) Start(ip string, startedAt time.Time, consumerID uint) (string, error) {
	session := &Session{
		Token:      newToken(),
		IP:         ip,
		StartedAt:  FormatTime(startedAt),
		ConsumerID: consumerID,
	}

	res := s.db.Create(session)
	if res.Error != nil {
		return "", newError(KindPersistence, "could not store new session", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", newError(KindPersistence, "could not store new session", nil)
	}

	s.log.Debug("session started", zap.Uint("id", session.ID), zap.Uint("consumer_id", consumerID))
	return session.Token, nil
}

// Get returns the open session identified by token. A stopped session is
// reported as KindAlreadyStopped, which makes Get the guard used before
// recording events.
func (s *Sessions) Get(token string) (*Session, error) {
	var session Session
	err := s.db.Where("token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindNotFound, "could not find session", nil)
	}
	if err != nil {
		return nil, newError(KindPersistence, "could not look up session", err)
	}

	if session.StoppedAt != nil {
		return nil, newError(KindAlreadyStopped, "session was already stopped", nil)
	}
	return &session, nil
}

// Stop closes the session identified by token. Stopping twice is an error.
func (s *Sessions) Stop(token string, stoppedAt time.Time) error {
	session, err := s.Get(token)
	if err != nil {
		return err
	}

	res := s.db.Model(&Session{}).
		Where("id = ? AND stopped_at IS NULL", session.ID).
		Update("stopped_at", FormatTime(stoppedAt))
	if res.Error != nil {
		return newError(KindPersistence, "could not stop session", res.Error)
	}
	// Lost a race with a concurrent stop.
	if res.RowsAffected == 0 {
		return newError(KindAlreadyStopped, "session was already stopped", nil)
	}

	s.log.Debug("session stopped", zap.Uint("id", session.ID))
	return nil
}

// Find returns sessions with at least one click event, each with its click
// count and the time of its latest click.
func (s *Sessions) Find(params map[string]string) ([]SessionSummary, error) {
	f, err := BuildFilter(params, SessionColumns)
	if err != nil {
		return nil, err
	}

	q := s.db.Table("sessions").
		Select("sessions.id, sessions.token, sessions.ip, sessions.started_at, sessions.stopped_at, sessions.consumer_id, " +
			"COUNT(events.id) AS clicks, MAX(events.time) AS last_click").
		Joins("JOIN events ON events.session_id = sessions.id AND events.action = ?", ClickAction).
		Group("sessions.id")
	q = f.Apply(q, "sessions.id ASC")

	rows := make([]SessionSummary, 0)
	if err := q.Scan(&rows).Error; err != nil {
		return nil, newError(KindPersistence, "could not query sessions", err)
	}
	return rows, nil
}

// Cleanup deletes every session left open, treating it as abandoned by a
// previous run. It must run before Events.Cleanup.
func (s *Sessions) Cleanup() (int64, error) {
	res := s.db.Where("stopped_at IS NULL").Delete(&Session{})
	if res.Error != nil {
		return 0, newError(KindPersistence, "could not clean up sessions", res.Error)
	}
	s.log.Info("cleaned up sessions", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}
