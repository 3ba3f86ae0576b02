package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PaperKey returns the cache key for a full paper definition, answer key included.
func (r *CacheKeyStruct) PaperKey(paperID int64) string {
	return fmt.Sprintf("paper:%d", paperID)
}

var CacheKey = NewCacheKeyStruct()
