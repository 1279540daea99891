package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v7"
	"github.com/ipcollateral/lending-services/models/lending"
)

// RedisClient persists each wallet's asset list as a single JSON
// value. Lists are always read and written whole.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

// AssetsKey returns the key under which a wallet's assets are stored.
// Wallet addresses are case-insensitive, so the key is lower case.
func AssetsKey(walletAddress string) string {
	return fmt.Sprintf("assets:%s", strings.ToLower(walletAddress))
}

// AssetsGet returns all assets registered by the wallet. A wallet
// with nothing stored has an empty list.
func (c *RedisClient) AssetsGet(ctx context.Context, walletAddress string) ([]*lending.Asset, error) {
	data, err := c.client.WithContext(ctx).Get(AssetsKey(walletAddress)).Result()
	if err == redis.Nil {
		return make([]*lending.Asset, 0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("AssetsGet (%s): %s", walletAddress, err.Error())
	}
	assets, err := lending.AssetsFromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("AssetsGet (%s): stored list is not valid JSON: %s",
			walletAddress, err.Error())
	}
	return assets, nil
}

// AssetsSave replaces the wallet's stored asset list.
func (c *RedisClient) AssetsSave(ctx context.Context, walletAddress string, assets []*lending.Asset) error {
	jsonData, err := lending.AssetsToJSON(assets)
	if err != nil {
		return err
	}
	_, err = c.client.WithContext(ctx).Set(AssetsKey(walletAddress), jsonData, 0).Result()
	if err != nil {
		return fmt.Errorf("AssetsSave (%s): %s", walletAddress, err.Error())
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}
