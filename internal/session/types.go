package session

import "slices"

// ProfileImage is either a remote reference (URL) or an inline base64 image with its media type.
type ProfileImage struct {
	URL       string `json:"url,omitempty"`
	Data      string `json:"data,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// Inline reports whether the image is carried inline rather than referenced.
func (p ProfileImage) Inline() bool { return p.Data != "" }

// UserProfile is the identity and display data of the signed-in principal.
type UserProfile struct {
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	Name         *string       `json:"name,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Bio          string        `json:"bio,omitempty"`
	Timezone     string        `json:"timezone,omitempty"`
	ProfileImage *ProfileImage `json:"profileImage,omitempty"`
	Roles        []string      `json:"roles"`
}

// HasRole reports whether role is one of the profile's role tags. Tags are not interpreted.
func (u UserProfile) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// DisplayName returns the display name, or the username when none is set.
func (u UserProfile) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Username
}

func (u UserProfile) clone() UserProfile {
	c := u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	if u.ProfileImage != nil {
		img := *u.ProfileImage
		c.ProfileImage = &img
	}
	c.Roles = slices.Clone(u.Roles)
	return c
}

// State is the session: a token and the profile it authenticates.
// A nil field is absent.
type State struct {
	Token *string      `json:"token"`
	User  *UserProfile `json:"user"`
}

// IsAuthenticated is true iff both token and user are present.
func (s State) IsAuthenticated() bool {
	return s.Token != nil && *s.Token != "" && s.User != nil
}

func (s State) clone() State {
	var c State
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	if s.User != nil {
		u := s.User.clone()
		c.User = &u
	}
	return c
}
