package models

import "spruce/src/types"

type Address struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	UserID   uint   `gorm:"index" json:"user_id"`
	Label    string `json:"label,omitempty"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Region   string `json:"region,omitempty"`
	PostCode string `json:"post_code,omitempty"`

	types.Timestamps
}
