package models

// Session is a bearer-token row. ID is the opaque token value wrapped
// into the signed JWT handed to clients; the row is the source of
// truth for expiry. IssuedAt and Expire are epoch milliseconds.
type Session struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	IssuedAt int64  `json:"issuedAt" gorm:"not null"`
	Expire   int64  `json:"expire" gorm:"not null;index"`
	Username string `json:"username" gorm:"type:varchar(255);not null;index"`

	User User `json:"-" gorm:"foreignKey:Username;references:Username"`
}

func (Session) TableName() string {
	return "sessions"
}
