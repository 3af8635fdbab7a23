package db

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventColumns is the allow-list used to filter and sort event queries.
// Session columns come from the joined sessions table.
var EventColumns = Columns{
	Filters: []FilterKey{
		{Param: "ip", Column: "sessions.ip", Match: MatchExact},
		{Param: "date", Column: "sessions.started_at", Match: MatchPrefix},
		{Param: "consumer", Column: "sessions.consumer_id", Match: MatchInteger},
		{Param: "action", Column: "events.action", Match: MatchExact},
	},
	Sortable: map[string]string{
		"id":          "events.id",
		"session_id":  "events.session_id",
		"time":        "events.time",
		"action":      "events.action",
		"ip":          "sessions.ip",
		"consumer_id": "sessions.consumer_id",
		"started_at":  "sessions.started_at",
	},
}

// EventRecord is an event as returned by Find. Data holds a datatypes.JSON
// value when the stored payload is valid JSON and the raw string otherwise.
// Session fields are nil when the event's session no longer exists.
type EventRecord struct {
	ID         uint    `json:"id"`
	SessionID  uint    `json:"session_id"`
	Time       string  `json:"time"`
	Action     string  `json:"action"`
	Data       any     `json:"data"`
	Token      *string `json:"token"`
	IP         *string `json:"ip"`
	ConsumerID *uint   `json:"consumer_id"`
}

type eventRow struct {
	ID         uint
	SessionID  uint
	Time       string `gorm:"column:time"`
	Action     string
	Data       string
	Token      *string
	IP         *string `gorm:"column:ip"`
	ConsumerID *uint
}

// Events is the append-only log of session events.
type Events struct {
	db  *gorm.DB
	log *zap.Logger
}

// Store records an event against a session previously resolved with
// Sessions.Get and returns the new event id.
func (e *Events) Store(session *Session, action, data string, at time.Time) (uint, error) {
	if session == nil {
		return 0, newError(KindNotFound, "could not find session", nil)
	}

	event := &Event{
		SessionID: session.ID,
		Time:      FormatTime(at),
		Action:    action,
		Data:      data,
	}
	res := e.db.Create(event)
	if res.Error != nil {
		return 0, newError(KindPersistence, "could not store event", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, newError(KindPersistence, "could not store event", nil)
	}
	return event.ID, nil
}

// Find returns events matching params regardless of the state of their
// session.
func (e *Events) Find(params map[string]string) ([]EventRecord, error) {
	f, err := BuildFilter(params, EventColumns)
	if err != nil {
		return nil, err
	}

	q := e.db.Table("events").
		Select("events.id, events.session_id, events.time, events.action, events.data, " +
			"sessions.token, sessions.ip, sessions.consumer_id").
		Joins("LEFT JOIN sessions ON sessions.id = events.session_id")
	q = f.Apply(q, "events.id ASC")

	var rows []eventRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, newError(KindPersistence, "could not query events", err)
	}

	records := make([]EventRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, EventRecord{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Time:       r.Time,
			Action:     r.Action,
			Data:       decodeData(r.Data),
			Token:      r.Token,
			IP:         r.IP,
			ConsumerID: r.ConsumerID,
		})
	}
	return records, nil
}

// decodeData is best effort: payloads that are not JSON are returned as is.
func decodeData(raw string) any {
	if json.Valid([]byte(raw)) {
		return datatypes.JSON(raw)
	}
	return raw
}

// Cleanup deletes events whose session no longer exists. It must run after
// Sessions.Cleanup.
func (e *Events) Cleanup() (int64, error) {
	res := e.db.Where("NOT EXISTS (SELECT 1 FROM sessions WHERE sessions.id = events.session_id)").Delete(&Event{})
	if res.Error != nil {
		return 0, newError(KindPersistence, "could not clean up events", res.Error)
	}
	e.log.Info("cleaned up events", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}
