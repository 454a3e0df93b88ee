// Package avatar builds initials-avatar URLs for newly registered
// accounts. The image itself is rendered by the ui-avatars service and
// re-hosted on our media CDN at registration time.
package avatar

import (
	"net/url"
	"strings"
)

const endpoint = "https://ui-avatars.com/api/"

func URL(firstName, lastName string) string {
	name := strings.TrimSpace(firstName + " " + lastName)
	if name == "" {
		name = "?"
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("size", "256")
	q.Set("background", "random")
	return endpoint + "?" + q.Encode()
}
