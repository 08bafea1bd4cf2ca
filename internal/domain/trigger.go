package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TriggerKind identifies which automation command produced a TriggerRun.
type TriggerKind string

const (
	TriggerDaily       TriggerKind = "daily"
	TriggerUploadCheck TriggerKind = "upload_check"
)

// TriggerStatus is the outcome recorded for a trigger invocation.
type TriggerStatus string

const (
	TriggerAccepted  TriggerStatus = "accepted"
	TriggerRejected  TriggerStatus = "rejected"
	TriggerCompleted TriggerStatus = "completed"
)

// StringList is a custom type for storing string slices as JSON in the database.
type StringList []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringList) Scan(value interface{}) error {
	if value == nil {
		*a = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// TriggerRun records one invocation of the daily run or the upload check.
// The latest daily run is the input to the overlap check.
type TriggerRun struct {
	ID          string        `gorm:"type:text;primaryKey" json:"id"`
	Kind        TriggerKind   `gorm:"type:text;not null;index:idx_trigger_runs_kind" json:"kind"`
	RunDate     string        `gorm:"type:text;not null" json:"runDate"`
	Status      TriggerStatus `gorm:"type:text;not null" json:"status"`
	JobIDs      StringList    `gorm:"type:text" json:"jobIds"`
	Created     int           `gorm:"default:0" json:"created"`
	Published   int           `gorm:"default:0" json:"published"`
	Failed      int           `gorm:"default:0" json:"failed"`
	Message     string        `gorm:"type:text" json:"message,omitempty"`
	TriggeredAt time.Time     `gorm:"index:idx_trigger_runs_triggered" json:"triggeredAt"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// TableName returns the database table name for TriggerRun.
func (TriggerRun) TableName() string {
	return "trigger_runs"
}
