package models

type NodeType string

const (
	NodeTypeFile   NodeType = "FILE"
	NodeTypeFolder NodeType = "FOLDER"
)

// Node is a single entry of the encrypted filesystem tree. All
// Encrypted* fields, IV and Tag are opaque blobs produced client-side;
// the server stores and returns them without ever decrypting anything.
type Node struct {
	ID   uint     `json:"id" gorm:"primaryKey;autoIncrement"`
	Type NodeType `json:"type" gorm:"type:varchar(10);not null;index"`

	// Ref is the permanent storage object key. Empty for folders,
	// always set for files once created.
	Ref string `json:"ref" gorm:"type:varchar(255);not null;default:''"`

	EncryptedMetadata  string `json:"encryptedMetadata" gorm:"type:text;not null"`
	EncryptedKey       string `json:"encryptedKey" gorm:"type:text;not null"`
	EncryptedParentKey string `json:"encryptedParentKey" gorm:"type:text"`
	IV                 string `json:"iv" gorm:"type:varchar(64);not null"`
	Tag                string `json:"tag" gorm:"type:varchar(64);not null"`

	ParentID *uint   `json:"parentID,omitempty" gorm:"index"`
	OwnerID  *string `json:"ownerID,omitempty" gorm:"type:varchar(255);index"`

	Parent   *Node   `json:"-" gorm:"foreignKey:ParentID"`
	Children []Node  `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Owner    *User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:Username"`
	Shares   []Share `json:"shares,omitempty" gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
	Links    []Link  `json:"links,omitempty" gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE"`
}

func (Node) TableName() string {
	return "nodes"
}

func (n *Node) IsFolder() bool {
	return n.Type == NodeTypeFolder
}
