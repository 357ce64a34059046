package model

// Asset model, immutable once markets reference it
type Asset struct {
	Symbol string `json:"symbol" gorm:"omitempty; primaryKey; type:varchar(16);"`
	Name   string `json:"name" gorm:"omitempty; not null; default:''; type:varchar(64);"`
	Scale  int32  `json:"scale" gorm:"not null;"` // fractional digits of amounts in this asset, 0 is valid

	Model
}
