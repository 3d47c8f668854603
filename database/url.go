package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL points a connection string at the named database.
// URL forms get the name as their path and default to sslmode=disable;
// keyword/value DSNs get a dbname pair. Strings that fail to parse are
// returned unchanged so pgx can report the problem.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	if !strings.Contains(baseURL, "://") {
		return strings.TrimSpace(baseURL) + " dbname=" + databaseName
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	u.Path = "/" + databaseName
	u.RawPath = ""

	query := u.Query()
	if !query.Has("sslmode") {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()

	return u.String()
}
