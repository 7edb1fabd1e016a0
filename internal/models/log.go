package models

import (
	"time"

	"gorm.io/gorm"
)

type LogType string

const (
	LogTypeUser LogType = "USER"
	LogTypeNode LogType = "NODE"
)

type ActivityType string

const (
	ActivityUserCreation     ActivityType = "USER_CREATION"
	ActivityUserRegistration ActivityType = "USER_REGISTRATION"
	ActivityUserLogin        ActivityType = "USER_LOGIN"
	ActivityUserUpdate       ActivityType = "USER_UPDATE"
	ActivityUserSuspension   ActivityType = "USER_SUSPENSION"
	ActivityUserDeletion     ActivityType = "USER_DELETION"

	ActivityFileUpload     ActivityType = "FILE_UPLOAD"
	ActivityFolderCreation ActivityType = "FOLDER_CREATION"
	ActivityFileDownload   ActivityType = "FILE_DOWNLOAD"
	ActivityFileMoving     ActivityType = "FILE_MOVING"
	ActivityFileOverwrite  ActivityType = "FILE_OVERWRITE"
	ActivityFileDeletion   ActivityType = "FILE_DELETION"
	ActivityFileSharing    ActivityType = "FILE_SHARING"
	ActivityFolderSharing  ActivityType = "FOLDER_SHARING"
	ActivityLinkCreation   ActivityType = "LINK_CREATION"
)

// UserLog records account lifecycle activity. Subject is who the
// activity is about, Performer is who did it (an admin suspending a
// user, or the user themselves on login). Log rows are append-only
// and outlive their subjects: every reference is nullable and set to
// NULL when the referenced row goes away.
type UserLog struct {
	ID           uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp    int64        `json:"timestamp" gorm:"not null;index"`
	LogType      LogType      `json:"logType" gorm:"type:varchar(10);not null"`
	ActivityType ActivityType `json:"activityType" gorm:"type:varchar(30);not null;index"`

	SubjectUsername   *string `json:"subjectUsername,omitempty" gorm:"type:varchar(255);index"`
	PerformerUsername *string `json:"performerUsername,omitempty" gorm:"type:varchar(255);index"`
	SessionID         *string `json:"sessionID,omitempty" gorm:"type:varchar(36)"`

	Subject   *User    `json:"subject,omitempty" gorm:"foreignKey:SubjectUsername;references:Username;constraint:OnDelete:SET NULL"`
	Performer *User    `json:"performer,omitempty" gorm:"foreignKey:PerformerUsername;references:Username;constraint:OnDelete:SET NULL"`
	Session   *Session `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:SET NULL"`
}

func (UserLog) TableName() string {
	return "user_logs"
}

func (l *UserLog) BeforeCreate(_ *gorm.DB) error {
	if l.Timestamp == 0 {
		l.Timestamp = time.Now().UnixMilli()
	}
	l.LogType = LogTypeUser
	return nil
}

// NodeLog records node lifecycle activity. Moves carry both the old
// and the new parent; sharing carries the recipient or the link.
type NodeLog struct {
	ID           uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp    int64        `json:"timestamp" gorm:"not null;index"`
	LogType      LogType      `json:"logType" gorm:"type:varchar(10);not null"`
	ActivityType ActivityType `json:"activityType" gorm:"type:varchar(30);not null;index"`

	NodeID            *uint   `json:"nodeID,omitempty" gorm:"index"`
	OldParentID       *uint   `json:"oldParentID,omitempty"`
	NewParentID       *uint   `json:"newParentID,omitempty"`
	OwnerUsername     *string `json:"ownerUsername,omitempty" gorm:"type:varchar(255);index"`
	PerformerUsername *string `json:"performerUsername,omitempty" gorm:"type:varchar(255);index"`
	SharedWith        *string `json:"sharedWith,omitempty" gorm:"type:varchar(255)"`
	LinkShareID       *string `json:"linkShareID,omitempty" gorm:"type:varchar(32)"`
	SessionID         *string `json:"sessionID,omitempty" gorm:"type:varchar(36)"`

	Node      *Node    `json:"-" gorm:"foreignKey:NodeID;constraint:OnDelete:SET NULL"`
	OldParent *Node    `json:"-" gorm:"foreignKey:OldParentID;constraint:OnDelete:SET NULL"`
	NewParent *Node    `json:"-" gorm:"foreignKey:NewParentID;constraint:OnDelete:SET NULL"`
	Link      *Link    `json:"-" gorm:"foreignKey:LinkShareID;constraint:OnDelete:SET NULL"`
	Session   *Session `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:SET NULL"`
}

func (NodeLog) TableName() string {
	return "node_logs"
}

func (l *NodeLog) BeforeCreate(_ *gorm.DB) error {
	if l.Timestamp == 0 {
		l.Timestamp = time.Now().UnixMilli()
	}
	l.LogType = LogTypeNode
	return nil
}
