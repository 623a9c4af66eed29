package app

import (
	neturl "net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/threadbrief/core/internal/config"
)

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) == 0 || cfg.IsDev() {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}

	patterns := cfg.AllowedOrigins
	c.AllowOriginFunc = func(origin string) bool {
		host := originHost(origin)
		for _, pattern := range patterns {
			if matchOrigin(pattern, host) {
				return true
			}
		}
		return false
	}
	return c
}

// originHost returns the "host[:port]" portion of an origin URL.
func originHost(origin string) string {
	u, err := neturl.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOrigin supports exact hosts and "*." subdomain wildcards.
func matchOrigin(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}
