package models

import (
	"encoding/json"
	"time"
)

// Product types
const (
	ProductTypeSimple   = "simple"
	ProductTypeFlavored = "flavored"
	ProductTypeBundle   = "bundle"
)

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CategoryID  uint            `gorm:"not null" json:"category_id"`
	Category    ProductCategory `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       float64         `gorm:"type:decimal(10,2);not null" json:"price"`
	ProductType string          `gorm:"type:varchar(20);not null;default:'simple'" json:"product_type"`
	ImageUrls   string          `gorm:"type:text" json:"image_urls"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	FlavorRule  *FlavorRule     `gorm:"foreignKey:ProductID" json:"flavor_rule,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

// SetImageUrls stores the uploaded image URL list as JSON.
func (p *Product) SetImageUrls(urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	p.ImageUrls = string(data)
	return nil
}

// GetImageUrls decodes the stored JSON list; empty column yields an empty slice.
func (p *Product) GetImageUrls() []string {
	if p.ImageUrls == "" {
		return []string{}
	}
	var urls []string
	if err := json.Unmarshal([]byte(p.ImageUrls), &urls); err != nil {
		return []string{}
	}
	return urls
}
