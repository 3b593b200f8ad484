package domain

type User struct {
	ID       string
	Username string
	Bot      bool
}
