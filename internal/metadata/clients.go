package metadata

// NewClient builds the concrete client for a provider config. Providers
// the registry does not recognize by name fall back to the generic
// REST client.
func NewClient(cfg ProviderConfig) Client {
	switch cfg.Name {
	case "google_books", "googlebooks":
		return NewGoogleBooksClient(cfg)
	case "open_library", "openlibrary":
		return NewOpenLibraryClient(cfg)
	case "hardcover", "hardcover_api":
		return NewHardcoverClient(cfg)
	default:
		return NewGenericClient(cfg)
	}
}

// hasDefaultEndpoint reports whether a provider name maps to a client
// with a built-in API endpoint. Everything else is a generic provider
// and needs an explicit base URL to be callable.
func hasDefaultEndpoint(name string) bool {
	switch name {
	case "google_books", "googlebooks", "open_library", "openlibrary", "hardcover", "hardcover_api":
		return true
	}
	return false
}
