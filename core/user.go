package core

type (
	// User is the identity returned by an OAuth provider before a token is minted.
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email,omitempty"`
		AvatarURL string `json:"avatarUrl,omitempty"`
		Name      string `json:"name"`
		Role      Role   `json:"role"`
	}
)
