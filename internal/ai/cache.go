package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded response cache; entries expire ttl after insertion.
type Cache struct {
	lru *expirable.LRU[string, string]
}

func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *Cache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Add(key, text string) {
	c.lru.Add(key, text)
}

func cacheKey(provider string, req Request) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(req.JSON)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(req.Temperature, 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}
