package domain

// User is the profile projection returned by the auth endpoints.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// Book is a catalog entry. The backend catalog is the source of truth,
// except for search-derived entries which are synthesized from the
// external search collaborator and never written back.
type Book struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Genre           string  `json:"genre"`
	Rating          float64 `json:"rating"`
	Price           float64 `json:"price"`
	Image           string  `json:"image"`
	Description     string  `json:"description"`
	PublicationDate string  `json:"publicationDate"`
	InStock         bool    `json:"inStock"`

	// FromSearch marks entries synthesized from search results, whose
	// price is a placeholder rather than a backend-committed value.
	FromSearch bool `json:"-"`
}

// CartItem is one cart line. ID is the book ID; at most one line per
// book exists and Quantity is always >= 1.
type CartItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// StoredSession is the serialized session projection kept in the
// credential store.
type StoredSession struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
