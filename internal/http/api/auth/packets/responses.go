package packets

type TokenResponse struct {
	Token string `json:"token"`
}

// returned for profile endpoints. Timezone is the zone the member's calendar
// is kept in, after defaulting.
type ProfileResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Timezone  string  `json:"timezone"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}
