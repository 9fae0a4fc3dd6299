package models

import "time"

// FriendRequestStatus represents the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	// FriendRequestStatusPending is the state of every newly created request.
	FriendRequestStatusPending FriendRequestStatus = "PENDING"
	// FriendRequestStatusAccepted marks a request the recipient accepted.
	FriendRequestStatusAccepted FriendRequestStatus = "ACCEPTED"
	// FriendRequestStatusRejected marks a request the recipient declined.
	FriendRequestStatusRejected FriendRequestStatus = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestStatusPending, FriendRequestStatusAccepted, FriendRequestStatusRejected:
		return true
	}
	return false
}

// FriendRequest records one user's request to befriend another.
// Requester and recipient are weak references; users are never loaded through it.
type FriendRequest struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	RequesterID uint                `gorm:"not null;index:idx_friend_requests_pair" json:"requester_id"`
	RecipientID uint                `gorm:"not null;index:idx_friend_requests_pair;index:idx_friend_requests_recipient" json:"recipient_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_friend_requests_pair" json:"status"`
	RequestedAt time.Time           `gorm:"not null" json:"requested_at"`
}

// TableName specifies the table name for GORM
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// NewFriendRequest builds a pending request stamped with now.
// Status and RequestedAt are never taken from callers.
func NewFriendRequest(requesterID, recipientID uint, now time.Time) *FriendRequest {
	return &FriendRequest{
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      FriendRequestStatusPending,
		RequestedAt: now.UTC(),
	}
}
