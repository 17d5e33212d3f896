package models

import (
	"strings"
	"time"
)

// Location is a point on Earth in degrees.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Preferences is a user's stated matching preferences. An empty slice or a
// zero MaxDistanceKm means the constraint is undefined and is skipped during
// matching.
type Preferences struct {
	MinAge        int      `json:"min_age"`
	MaxAge        int      `json:"max_age"`
	MaxDistanceKm float64  `json:"max_distance_km"`
	Gender        string   `json:"gender"` // "any" matches everyone
	Languages     []string `json:"languages"`
	Interests     []string `json:"interests"`
}

// User represents a user in the system. Identity is owned by the external
// auth provider; ExternalID is its stable subject id.
type User struct {
	ID                     string       `json:"id"`
	ExternalID             string       `json:"external_id"`
	Username               string       `json:"username,omitempty"`
	Email                  string       `json:"email"`
	FirstName              string       `json:"first_name,omitempty"`
	LastName               string       `json:"last_name,omitempty"`
	ImageURL               *string      `json:"image_url,omitempty"`
	Bio                    string       `json:"bio,omitempty"`
	City                   string       `json:"city,omitempty"`
	Country                string       `json:"country,omitempty"`
	Age                    *int         `json:"age,omitempty"`
	Gender                 string       `json:"gender,omitempty"`
	Languages              []string     `json:"languages,omitempty"`
	Interests              []string     `json:"interests,omitempty"`
	Location               *Location    `json:"location,omitempty"`
	Preferences            *Preferences `json:"preferences,omitempty"`
	Recommended            []string     `json:"-"`
	LastRecommended        []string     `json:"-"`
	LastRecommendationDate *time.Time   `json:"-"`
	IsOnboarded            bool         `json:"is_onboarded"`
	CreatedAt              time.Time    `json:"created_at"`
}

// Connection represents the pen-pal relationship between two users.
type Connection struct {
	ID                  string     `json:"id"`
	UserAID             string     `json:"user_a_id"`
	UserBID             string     `json:"user_b_id"`
	PairKey             string     `json:"-"`
	DelayInHours        float64    `json:"delay_in_hours"`
	LastChronicleSentAt *time.Time `json:"last_chronicle_sent_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Counterpart returns the other participant's id, or "" if userID is not a
// participant.
func (c *Connection) Counterpart(userID string) string {
	switch userID {
	case c.UserAID:
		return c.UserBID
	case c.UserBID:
		return c.UserAID
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Connection) HasParticipant(userID string) bool {
	return userID == c.UserAID || userID == c.UserBID
}

// PairKey builds the canonical key for an unordered user pair. A unique
// index on this key guarantees at most one connection per pair.
func PairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// Chronicle is a single delayed message within a connection. Immutable once
// created.
type Chronicle struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sent_at"`
}

// WordCount counts whitespace-separated words in the chronicle content.
func (c *Chronicle) WordCount() int {
	return len(strings.Fields(c.Content))
}

// RenderedChronicle is a chronicle as seen by a specific viewer at a
// specific instant: content may be a decoy and delivery status is derived,
// never stored.
type RenderedChronicle struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sent_at"`
	Delivered    bool      `json:"delivered"`
	TimeLeft     string    `json:"time_left,omitempty"`
}

// ConnectionSummary is a connection annotated with the resolved counterpart
// profile, as listed in a user's inbox.
type ConnectionSummary struct {
	Connection
	Counterpart *User `json:"counterpart"`
}
