package models

type AccessLevel string

const (
	AccessLevelAdministrator AccessLevel = "ADMINISTRATOR"
	AccessLevelUser          AccessLevel = "USER"
	AccessLevelGuest         AccessLevel = "GUEST"
)

type UserStatus string

const (
	UserStatusPendingRegistration UserStatus = "PENDING_REGISTRATION"
	UserStatusPendingValidation   UserStatus = "PENDING_VALIDATION"
	UserStatusOK                  UserStatus = "OK"
	UserStatusSuspended           UserStatus = "SUSPENDED"
	UserStatusDeleted             UserStatus = "DELETED"
)

// User is keyed by username. All key material is encrypted or hashed
// client-side before it reaches the server; the server only verifies
// HashedAuthenticationKey (bcrypt) and stores the rest untouched.
type User struct {
	Username string `json:"username" gorm:"primaryKey;type:varchar(255)"`
	Email    string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`

	HashedAuthenticationKey string `json:"-" gorm:"type:text;not null"`
	EncryptedMasterKey      string `json:"encryptedMasterKey" gorm:"type:text;not null"`
	EncryptedRSAPrivateKey  string `json:"encryptedRSAPrivateKey" gorm:"type:text"`
	RSAPublicKey            string `json:"rsaPublicKey" gorm:"type:text"`

	AccessLevel     AccessLevel `json:"accessLevel" gorm:"type:varchar(20);not null;default:'USER'"`
	UserStatus      UserStatus  `json:"userStatus" gorm:"type:varchar(30);not null;default:'PENDING_REGISTRATION';index"`
	RegistrationKey string      `json:"-" gorm:"type:varchar(64);index"`

	Nodes           []Node    `json:"-" gorm:"foreignKey:OwnerID;references:Username"`
	Sessions        []Session `json:"-" gorm:"foreignKey:Username;references:Username;constraint:OnDelete:CASCADE"`
	SenderShares    []Share   `json:"-" gorm:"foreignKey:SenderUsername;references:Username"`
	RecipientShares []Share   `json:"-" gorm:"foreignKey:RecipientUsername;references:Username"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdministrator() bool {
	return u.AccessLevel == AccessLevelAdministrator
}
