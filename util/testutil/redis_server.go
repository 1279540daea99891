package testutil

import (
	"github.com/alicebob/miniredis/v2"
)

// RedisServer is an in-memory Redis for tests that need an asset store.
type RedisServer struct {
	server *miniredis.Miniredis
}

func NewRedisServer() *RedisServer {
	server, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	return &RedisServer{
		server: server,
	}
}

func (s *RedisServer) Addr() string {
	return s.server.Addr()
}

// Get returns the raw string value stored under key.
func (s *RedisServer) Get(key string) (string, error) {
	return s.server.Get(key)
}

// Set stores a raw string value, bypassing the client under test.
func (s *RedisServer) Set(key, value string) error {
	return s.server.Set(key, value)
}

// FlushAll removes every key, so tests sharing a server start clean.
func (s *RedisServer) FlushAll() {
	s.server.FlushAll()
}

func (s *RedisServer) Close() {
	s.server.Close()
}
