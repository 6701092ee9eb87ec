package location

//go:generate mockgen -destination=../../mocks/location.go -package=mocks . Locator

// Locator reports the view the user is currently looking at, e.g. "/rules/42".
type Locator interface {
	Current() string
}
