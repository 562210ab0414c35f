package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key holding the JTI of a student's live login
func (r *CacheKeyStruct) StudentLoginKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// StudentQuizSessionKey returns the cache key for a student's last session snapshot
func (r *CacheKeyStruct) StudentQuizSessionKey(studentID int) string {
	return fmt.Sprintf("student:%d:quiz_session", studentID)
}

// TestQuestionsKey returns the cache key for a test's question set (answer keys included)
func (r *CacheKeyStruct) TestQuestionsKey(testID int) string {
	return fmt.Sprintf("test:%d:questions", testID)
}

// TestMetaKey returns the cache key for a test's metadata
func (r *CacheKeyStruct) TestMetaKey(testID int) string {
	return fmt.Sprintf("test:%d:meta", testID)
}

// LoginRateKey returns the rate limit counter key for a client address
func (r *CacheKeyStruct) LoginRateKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:login:%s", clientIP)
}

var CacheKey = NewCacheKeyStruct()
