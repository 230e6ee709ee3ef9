package storage

import (
	"errors"

	"github.com/cuemby/launcher/pkg/types"
)

var (
	// ErrClusterNotFound is returned when no cluster matches the id or name
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrSettingNotFound is returned when a setting key has never been saved
	ErrSettingNotFound = errors.New("setting not found")
)

// Well-known setting keys
const (
	SettingSudoPassword = "sudo_password"
)

// Store defines the interface for the launcher's local registry
type Store interface {
	// Clusters
	CreateCluster(cluster *types.Cluster) error
	GetCluster(id string) (*types.Cluster, error)
	GetClusterByName(name string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	DeleteCluster(id string) error

	// Settings hold opaque values such as the encrypted sudo password
	SaveSetting(key string, value []byte) error
	GetSetting(key string) ([]byte, error)
	DeleteSetting(key string) error

	// Utility
	Close() error
}
