package models

import "time"

// ApprovalState is the position of a comment in the moderation lifecycle.
type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

// Collection names one of the two ordered comment collections.
type Collection string

const (
	CollectionApproved Collection = "approved"
	CollectionPending  Collection = "pending"
)

// Comment represents a classified chat comment
type Comment struct {
	ID            string        `json:"id" db:"id"`
	Author        string        `json:"author" db:"author"`
	Avatar        string        `json:"avatar,omitempty" db:"avatar"`
	Text          string        `json:"text" db:"text"`
	Safe          bool          `json:"safe" db:"safe"`
	Reason        string        `json:"reason" db:"reason"`
	Confidence    float64       `json:"confidence" db:"confidence"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	ApprovalState ApprovalState `json:"approval_state" db:"approval_state"`
}

// Clone returns a copy that shares no state with c.
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// SubmitRequest for posting a comment
type SubmitRequest struct {
	Author string `json:"author"`
	Text   string `json:"text" binding:"required"`
}

// SubmitResponse tells the submitter whether the comment went live
type SubmitResponse struct {
	Comment *Comment `json:"comment"`
	Status  string   `json:"status"` // "posted" or "awaiting_review"
}

// FeedItem is a comment as shown in the chat feed
type FeedItem struct {
	*Comment
	Status ApprovalState `json:"status"`
}

// Stats summarises both collections
type Stats struct {
	Approved         int  `json:"approved"`
	Pending          int  `json:"pending"`
	ComplianceActive bool `json:"compliance_active"`
	ComplianceRules  int  `json:"compliance_rules"`
}
