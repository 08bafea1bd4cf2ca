package domain

import "time"

// Channel is a publishing destination with its own upload-time policy.
// The core reads channels; it never creates or edits them outside startup seeding.
type Channel struct {
	ID                 string    `gorm:"type:text;primaryKey" json:"id"`
	Name               string    `gorm:"type:text;not null" json:"name"`
	LongFormUploadTime string    `gorm:"type:text;not null;default:'18:00'" json:"longFormUploadTime"`
	ShortUploadTime    string    `gorm:"type:text;not null;default:'12:00'" json:"shortUploadTime"`
	Timezone           string    `gorm:"type:text" json:"timezone,omitempty"`
	IsActive           bool      `gorm:"not null;index:idx_channels_active" json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// UploadTime returns the configured time of day for a video type.
func (c *Channel) UploadTime(vt VideoType) string {
	if vt == VideoTypeShort {
		return c.ShortUploadTime
	}
	return c.LongFormUploadTime
}
