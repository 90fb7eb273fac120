package models

// Group is a named, colored set of phone references. Groups do not own
// phones; membership is many-to-many and edited through add/remove calls,
// never through the group entity itself.
type Group struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Color    string   `json:"color,omitempty"`
	PhoneIDs []string `json:"phone_ids"`
}

// Contains reports whether the group currently references the given phone.
func (g *Group) Contains(phoneID string) bool {
	for _, id := range g.PhoneIDs {
		if id == phoneID {
			return true
		}
	}
	return false
}
