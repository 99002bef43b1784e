package cache

import (
	"fmt"
	"time"
)

const (
	SliderKey       = "posts:slider"
	PostSlugKeyFmt  = "post:slug:%s"
	RateLimitKeyFmt = "ratelimit:%s:%s"
)

const (
	SliderTTL = 10 * time.Minute
	PostTTL   = 30 * time.Minute
)

func PostSlugKey(slug string) string {
	return fmt.Sprintf(PostSlugKeyFmt, slug)
}

func RateLimitKey(name, subject string) string {
	return fmt.Sprintf(RateLimitKeyFmt, name, subject)
}
