package pathservice

// WithBeforeSearch installs a hook that runs in the worker before each search.
func WithBeforeSearch(hook func(Request)) Option {
	return func(s *Service) { s.beforeSearch = hook }
}
