package domain

// Driver represents a registered driver.
// Drivers are immutable once created; there is no update or delete path.
type Driver struct {
	ID   string
	Name string
}
