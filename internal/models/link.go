package models

// Link is an anonymous, token-addressed pointer to a single FILE node.
// ShareID is an unguessable random token used directly as primary key.
// Links never expire on their own; they die with their node.
type Link struct {
	ShareID string `json:"shareId" gorm:"primaryKey;type:varchar(32)"`

	EncryptedNodeKey  string `json:"encryptedNodeKey" gorm:"type:text;not null"`
	EncryptedShareKey string `json:"encryptedShareKey" gorm:"type:text;not null"`
	IV                string `json:"iv" gorm:"type:varchar(64);not null"`

	NodeID uint `json:"nodeID" gorm:"not null;index"`
	Node   Node `json:"node,omitempty" gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
}

func (Link) TableName() string {
	return "links"
}
