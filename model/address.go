package model

// Address is the structured result of a reverse geocode. Providers routinely
// return partial data, so every field may be empty; callers treat a partial
// address as editable form state, not as an error.
type Address struct {
	Street     string
	City       string
	Province   string
	PostalCode string
	Position   Point
}

// PlaceCandidate is one hit from a forward place search.
type PlaceCandidate struct {
	Name        string
	DisplayName string
	Position    Point
}
