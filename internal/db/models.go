package db

// Timestamps are kept as sortable text (see TimeLayout) so that the "date"
// filter can prefix-match them on every backend.

// Consumer is an API caller allowed to open sessions. A consumer with a
// non-nil DeletedAt is inactive.
type Consumer struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	Name string `gorm:"uniqueIndex;not null"`

	// Key holds the digest of the secret handed out at registration.
	Key string `gorm:"column:key;index;not null"`

	// IPFilter is stored for the consumer but not enforced.
	IPFilter *string `gorm:"column:ip_filter"`

	CreatedAt string  `gorm:"not null"`
	DeletedAt *string `gorm:"column:deleted_at"`

	Sessions []Session `gorm:"foreignKey:ConsumerID"`
}

func (Consumer) TableName() string {
	return "consumers"
}

// Session is a bounded span of client activity. A nil StoppedAt means the
// session is still open.
type Session struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	Token string `gorm:"uniqueIndex;not null" json:"token"`
	IP    string `gorm:"column:ip;not null" json:"ip"`

	StartedAt string  `gorm:"index;not null" json:"started_at"`
	StoppedAt *string `json:"stopped_at"`

	ConsumerID uint `gorm:"index;not null" json:"consumer_id"`

	Events []Event `gorm:"foreignKey:SessionID" json:"-"`
}

func (Session) TableName() string {
	return "sessions"
}

// Event is an immutable action recorded against a session.
type Event struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	SessionID uint   `gorm:"index;not null"`
	Time      string `gorm:"column:time;index;not null"`
	Action    string `gorm:"index;not null"`

	// Data is an opaque payload, decoded as JSON on read when possible.
	Data string `gorm:"type:text"`
}

func (Event) TableName() string {
	return "events"
}
