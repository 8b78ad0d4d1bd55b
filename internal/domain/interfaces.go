package domain

// GrantRepository defines how the grant register is persisted
type GrantRepository interface {
	UpsertGrant(grant *OptionGrant) error
	GetGrant(id string) (*OptionGrant, error)
	ListGrants() ([]OptionGrant, error)
	ListGrantsByHolder(holder string) ([]OptionGrant, error)
	DeleteGrant(id string) error
}
