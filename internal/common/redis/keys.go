package redis

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/edgecomet/pagepurge/internal/common/configtypes"
)

// KeyGenerator builds the Redis keys used by the page cache, nonce and option stores
type KeyGenerator struct {
	pagePrefix string
}

// NewKeyGenerator creates a KeyGenerator whose page keys start with pagePrefix
func NewKeyGenerator(pagePrefix string) *KeyGenerator {
	return &KeyGenerator{pagePrefix: pagePrefix}
}

// PageKey returns the key of a cached page. Format: {prefix}{xxhash64 hex of normalized URL}
func (kg *KeyGenerator) PageKey(normalizedURL string) string {
	return kg.pagePrefix + strconv.FormatUint(xxhash.Sum64String(normalizedURL), 16)
}

// PagePattern matches every cached page key
func (kg *KeyGenerator) PagePattern() string {
	return kg.pagePrefix + "*"
}

// NonceKey marks a token id as consumed
func (kg *KeyGenerator) NonceKey(tokenID string) string {
	return configtypes.NonceKeyPrefix + tokenID
}

// OptionKey stores a named site option
func (kg *KeyGenerator) OptionKey(name string) string {
	return configtypes.OptionKeyPrefix + name
}
