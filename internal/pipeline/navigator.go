package pipeline

// Navigator performs the navigation effect after terminal authentication failure.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Expirer is notified when the session can no longer be refreshed.
type Expirer interface {
	Expire()
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}
