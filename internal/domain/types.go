package domain

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage bundles a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Address captures a delivery destination as stored on users and orders.
type Address struct {
	Line1      string
	Line2      string
	City       string
	District   string
	PostalCode string
	Country    string
}

// MediaObject references an uploaded blob together with its public URL.
type MediaObject struct {
	ID  string
	URL string
}
