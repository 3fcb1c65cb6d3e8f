package reconcile

import "encoding/json"

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// RawProfile is a profile row exactly as the store holds it, nullable
// columns kept nullable. It never leaves this package un-normalized.
type RawProfile struct {
	ID            string  `json:"id"`
	Email         *string `json:"email"`
	Name          *string `json:"name"`
	Role          *string `json:"role"`
	RoomNumber    *string `json:"roomNumber"`
	Address       *string `json:"address"`
	MeritPoints   *int    `json:"meritPoints"`
	DemeritPoints *int    `json:"demeritPoints"`
	InfoComplete  *bool   `json:"infoComplete"`
	AvatarURL     *string `json:"avatarUrl"`
}

// Profile is the normalized user record every consumer sees. Point counts
// are never negative, Role is always set, and InfoComplete is false until
// the onboarding form has been submitted.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role"`
	RoomNumber    string `json:"roomNumber,omitempty"`
	Address       string `json:"address,omitempty"`
	MeritPoints   int    `json:"meritPoints"`
	DemeritPoints int    `json:"demeritPoints"`
	InfoComplete  bool   `json:"infoComplete"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
}

// Normalize coalesces nullable store fields into their defaults. It is the
// single place these defaults are established; it is deterministic, so
// normalizing the same row twice yields identical profiles.
func Normalize(raw RawProfile, sessionEmail string) Profile {
	p := Profile{
		ID:           raw.ID,
		Role:         RoleStudent,
		InfoComplete: false,
	}
	if raw.Email != nil && *raw.Email != "" {
		p.Email = *raw.Email
	} else {
		p.Email = sessionEmail
	}
	if raw.Name != nil {
		p.Name = *raw.Name
	}
	if raw.Role != nil && *raw.Role != "" {
		p.Role = *raw.Role
	}
	if raw.RoomNumber != nil {
		p.RoomNumber = *raw.RoomNumber
	}
	if raw.Address != nil {
		p.Address = *raw.Address
	}
	if raw.MeritPoints != nil {
		p.MeritPoints = *raw.MeritPoints
	}
	if raw.DemeritPoints != nil {
		p.DemeritPoints = *raw.DemeritPoints
	}
	if raw.InfoComplete != nil {
		p.InfoComplete = *raw.InfoComplete
	}
	if raw.AvatarURL != nil {
		p.AvatarURL = *raw.AvatarURL
	}
	return p
}

// MinimalProfile is the placeholder for an identity with no stored row yet.
// Resolution routes first-time users here instead of failing.
func MinimalProfile(identity string, email string) Profile {
	return Profile{
		ID:           identity,
		Email:        email,
		Role:         RoleStudent,
		InfoComplete: false,
	}
}

func EncodeProfile(p Profile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeProfile(data string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
