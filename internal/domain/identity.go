package domain

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AuthSession is the persisted form of a signed-in shopper.
type AuthSession struct {
	Identity Identity `json:"identity"`
	Token    string   `json:"token"`
}
