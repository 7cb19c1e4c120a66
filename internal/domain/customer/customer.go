package customer

// Customer identifies the owner of a cart. It carries no behaviour.
type Customer struct {
	ID    int64
	Token string
}

func New(id int64, token string) *Customer {
	return &Customer{ID: id, Token: token}
}
