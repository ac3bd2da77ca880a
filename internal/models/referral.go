package models

import "time"

// ReferralProfile links a user to their own code and, optionally, to the code that referred them.
type ReferralProfile struct {
	UserID    string `json:"userId" gorm:"column:user_id;primaryKey;size:128"`
	ReferCode string `json:"referCode" gorm:"column:refer_code;size:16;not null;uniqueIndex"`
	// ReferredBy is the referrer's code. It is set at most once.
	ReferredBy   *string    `json:"referredBy,omitempty" gorm:"column:referred_by;size:16;index"`
	AttributedAt *time.Time `json:"attributedAt,omitempty" gorm:"column:attributed_at"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"column:created_at"`
}

type ReferralStats struct {
	Profile       *ReferralProfile `json:"profile"`
	ReferredCount int64            `json:"referredCount"`
}
