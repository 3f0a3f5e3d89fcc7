package models

// TotalShares is the basis-point total every split is measured against.
const TotalShares int64 = 10000

// SplitType says how a split was created.
type SplitType string

const (
	SplitEven   SplitType = "even"
	SplitCustom SplitType = "custom"
)

// Share is one member's portion of a bill in basis points.
type Share struct {
	Member string `json:"member"`
	Share  int64  `json:"share"`
}

// SplitRecord is the apportionment of a single bill.
// There is at most one per bill.
type SplitRecord struct {
	// ID is assigned from the split sequence.
	ID int64

	BillID  string
	GroupID string
	Type    SplitType

	// Shares holds one entry per group member.
	Shares []Share

	// TotalShares is always models.TotalShares.
	TotalShares int64

	// Timestamp is the logical clock reading at creation.
	Timestamp int64

	// Creator is the only account allowed to edit the shares.
	Creator string

	// Approved flips to true once enough members approve. It never reverts.
	Approved bool

	// Approvals lists approving accounts in vote order.
	Approvals []string
}

// ShareOf returns the basis points assigned to member, or 0.
func (s *SplitRecord) ShareOf(member string) int64 {
	for _, sh := range s.Shares {
		if sh.Member == member {
			return sh.Share
		}
	}
	return 0
}

// HasApproved reports whether account already voted.
func (s *SplitRecord) HasApproved(account string) bool {
	for _, a := range s.Approvals {
		if a == account {
			return true
		}
	}
	return false
}

// SplitHistoryEntry records one edit of a split's shares.
type SplitHistoryEntry struct {
	ID        int64
	SplitID   int64
	BillID    string
	OldShares []Share
	NewShares []Share
	Updater   string
	Timestamp int64
}
