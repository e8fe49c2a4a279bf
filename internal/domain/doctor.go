package domain

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// Doctor is a conversation participant. Two identity namespaces coexist
// during the directory migration: the legacy numeric ID and the newer
// globally-unique UID. Key returns the canonical one; Matches accepts both.
type Doctor struct {
	ID        string
	UID       string
	Name      string
	Email     string
	Specialty string
	Status    Presence
}

// Key returns the canonical conversation key for this doctor.
func (d *Doctor) Key() string {
	if d.UID != "" {
		return d.UID
	}
	return d.ID
}

// Matches reports whether id refers to this doctor in either namespace.
func (d *Doctor) Matches(id string) bool {
	if id == "" {
		return false
	}
	return id == d.ID || id == d.UID
}
