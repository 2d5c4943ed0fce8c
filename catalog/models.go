package catalog

// Seller is a row of the sellers table. Password is stored as given (or as a
// bcrypt hash when hashing is enabled) and is never serialized.
type Seller struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Password  string  `json:"-"`
	Books     []*Book `json:"-"`
}

// Book represents a book listed by exactly one seller.
type Book struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	CountPages int    `json:"count_pages"`
	SellerID   int64  `json:"seller_id"`
}
