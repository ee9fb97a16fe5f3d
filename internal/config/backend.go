package config

// Backend persists the non-secret keys set through `creatorswipe config set`
// (server.port, feed.listing_url, swipe.end_policy and the rest of specs).
// Secrets such as matcher.api_key never pass through a Backend; they live in
// the platform secret store instead.
//
// Booleans and durations are written as strings and parsed on load.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
