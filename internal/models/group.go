package models

// Group is a set of accounts that share bills.
// The ledger reads it through ledger.GroupDirectory.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Members is the ordered list of member account IDs. Order is stable and
	// determines the order of shares in an even split.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether account belongs to the group.
func (g *Group) HasMember(account string) bool {
	for _, m := range g.Members {
		if m == account {
			return true
		}
	}
	return false
}

// Bill is a catalog entry whose total is apportioned among a group.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string

	// Title is the human-readable name for the bill.
	Title string

	// GroupID is the group whose members share the bill.
	GroupID string

	// TotalAmount is the amount to apportion, in minor units.
	TotalAmount int64

	// CreatedAt is the Unix timestamp when the bill was created.
	CreatedAt int64
}
