package redis

import "github.com/MrSnakeDoc/apiregistry/internal/domain"

const (
	// KeyPrefixEntry is the prefix for entry documents
	KeyPrefixEntry = "apireg:entry:"
	// KeyPrefixURL is the prefix for URL claims (value = entry ID)
	KeyPrefixURL = "apireg:url:"
	// KeyPrefixSlug is the prefix for slug claims (value = entry ID)
	KeyPrefixSlug = "apireg:slug:"
	// KeyAllEntries is the key for the set of all entry IDs
	KeyAllEntries = "apireg:entries:all"
)

// EntryKey returns the Redis key for an entry by ID
func EntryKey(id string) string {
	return KeyPrefixEntry + id
}

// URLKey returns the claim key for a source URL. URLs are hashed to keep keys bounded.
func URLKey(url string) string {
	return KeyPrefixURL + domain.HashContent([]byte(url))
}

// SlugKey returns the claim key for a slug
func SlugKey(slug string) string {
	return KeyPrefixSlug + slug
}

// AllEntriesKey returns the key for the set of all entry IDs
func AllEntriesKey() string {
	return KeyAllEntries
}
