package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Ingredient is one line of a recipe's ingredient list. Quantity stays a
// string so fractions like "1/2" survive round trips unchanged.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// IngredientList is stored as a jsonb column.
type IngredientList []Ingredient

// Value implements driver.Valuer for jsonb storage.
func (l IngredientList) Value() (driver.Value, error) {
	if l == nil {
		l = IngredientList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for jsonb storage.
func (l *IngredientList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StringList is a jsonb-backed list of strings, used for tags and steps.
type StringList []string

// Value implements driver.Valuer for jsonb storage.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for jsonb storage.
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// Recipe is an owner-scoped recipe record. OwnerID is set at creation and
// never changes for the lifetime of the recipe; IsPublic mirrors whether a
// public share row currently exists for it.
type Recipe struct {
	BaseModel
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Author           string         `gorm:"type:varchar(255)" json:"author"`
	Tags             StringList     `gorm:"type:jsonb" json:"tags"`
	Ingredients      IngredientList `gorm:"type:jsonb" json:"ingredients"`
	Steps            StringList     `gorm:"type:jsonb" json:"steps"`
	OwnerID          uint           `gorm:"not null;index" json:"ownerId"`
	Owner            User           `gorm:"foreignKey:OwnerID" json:"-"`
	IsPublic         bool           `gorm:"default:false" json:"isPublic"`
	Notes            string         `gorm:"type:text" json:"notes"`
	ServingsQuantity string         `gorm:"type:varchar(50)" json:"servingsQuantity"`
	ServingsUnit     string         `gorm:"type:varchar(50)" json:"servingsUnit"`
}

// TableName specifies the table name for the Recipe model.
func (Recipe) TableName() string {
	return "recipes"
}

// MaxRecipeTags caps how many tags a recipe may carry.
const MaxRecipeTags = 4
