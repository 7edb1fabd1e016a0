package models

// Share grants one recipient access to one node. ShareKey is the node
// key re-encrypted for the recipient; ShareSignature lets the client
// verify who produced it. Shares on a folder implicitly cover its
// whole subtree (resolved at access-check time, never materialized).
type Share struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	ShareKey       string `json:"shareKey" gorm:"type:varchar(1000);not null"`
	ShareSignature string `json:"shareSignature" gorm:"type:varchar(1000);not null"`

	NodeID            uint   `json:"nodeID" gorm:"not null;index"`
	SenderUsername    string `json:"senderUsername" gorm:"type:varchar(255);not null;index"`
	RecipientUsername string `json:"recipientUsername" gorm:"type:varchar(255);not null;index"`

	Node      Node `json:"node,omitempty" gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
	Sender    User `json:"sender,omitempty" gorm:"foreignKey:SenderUsername;references:Username;constraint:OnDelete:CASCADE"`
	Recipient User `json:"recipient,omitempty" gorm:"foreignKey:RecipientUsername;references:Username;constraint:OnDelete:CASCADE"`
}

func (Share) TableName() string {
	return "shares"
}
