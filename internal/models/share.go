package models

// ShareType discriminates the two share variants.
type ShareType string

const (
	// PublicShareType grants token-gated read access to anyone,
	// authenticated or not. Never edit.
	PublicShareType ShareType = "public"
	// UserShareType grants a specific friend access, optionally with edit
	// rights. Valid only while the owner-grantee friendship holds.
	UserShareType ShareType = "user"
)

// RecipeShare is a share grant for one recipe. A recipe has at most one
// public share and at most one user share per grantee; tokens are stable
// once created.
type RecipeShare struct {
	BaseModel
	RecipeID  uint      `gorm:"not null;index" json:"recipeId"`
	Recipe    Recipe    `gorm:"foreignKey:RecipeID" json:"-"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	Type      ShareType `gorm:"type:varchar(10);not null" json:"type"`
	GranteeID *uint     `gorm:"index" json:"userId,omitempty"` // nil for public shares
	CanEdit   bool      `gorm:"default:false" json:"canEdit"`
}

// TableName specifies the table name for the RecipeShare model.
func (RecipeShare) TableName() string {
	return "recipe_shares"
}

// ShareInfo is a share-listing entry enriched with the grantee's username
// for user shares.
type ShareInfo struct {
	ID        uint      `json:"id"`
	Token     string    `json:"token"`
	Type      ShareType `json:"type"`
	GranteeID uint      `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	CanEdit   bool      `json:"canEdit"`
}

// SharedRecipe is a shared-with-me listing entry: the recipe plus the share
// grant it arrived through and the owner's username.
type SharedRecipe struct {
	Recipe        Recipe `json:"recipe"`
	ShareToken    string `json:"shareToken"`
	CanEdit       bool   `json:"canEdit"`
	SharedAt      string `json:"sharedAt"`
	OwnerUsername string `json:"ownerUsername"`
}
