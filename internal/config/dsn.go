package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"strings"
)

// DSNValue assembles a MySQL DSN from the structured fields unless an
// explicit DSN was given.
func (c DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", "true")
	params.Set("loc", "Local")

	auth := user
	if password := strings.TrimSpace(c.Password); password != "" {
		auth += ":" + password
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s",
		auth, net.JoinHostPort(host, strconv.Itoa(port)), name, params.Encode())
}
