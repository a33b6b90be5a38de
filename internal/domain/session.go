package domain

import "time"

// Turn is one (utterance, answer) pair in a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Utterance Utterance `json:"utterance"`
	Answer    string    `json:"answer"`
	Degraded  bool      `json:"degraded"`
	At        time.Time `json:"at"`
}

// SessionContext is the state carried across turns and used to resolve
// follow-up requests such as "and how long to deliver?".
type SessionContext struct {
	ActiveRestaurant  string
	RestaurantAddress string
	// MenuItems are dish names seen in the last menu for ActiveRestaurant.
	MenuItems       []string
	ActiveItems     []string
	DeliveryAddress string
	LastEtaMinutes  float64
}

// Clone returns a deep copy safe to hand out of a lock.
func (c SessionContext) Clone() SessionContext {
	out := c
	out.MenuItems = append([]string(nil), c.MenuItems...)
	out.ActiveItems = append([]string(nil), c.ActiveItems...)
	return out
}
