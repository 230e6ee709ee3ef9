package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cuemby/launcher/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// DatabaseFile is the registry file name inside the data directory
const DatabaseFile = "launcher.db"

var (
	// Bucket names
	bucketClusters = []byte("clusters")
	bucketSettings = []byte("settings")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketClusters, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Cluster operations
func (s *BoltStore) CreateCluster(cluster *types.Cluster) error {
	if cluster == nil || cluster.ID == "" {
		return fmt.Errorf("cluster id is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data, err := json.Marshal(cluster)
		if err != nil {
			return err
		}
		return b.Put([]byte(cluster.ID), data)
	})
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	var cluster types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketClusters).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrClusterNotFound, id)
		}
		return json.Unmarshal(data, &cluster)
	})
	if err != nil {
		return nil, err
	}
	return &cluster, nil
}

func (s *BoltStore) GetClusterByName(name string) (*types.Cluster, error) {
	var found *types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).ForEach(func(k, v []byte) error {
			var cluster types.Cluster
			if err := json.Unmarshal(v, &cluster); err != nil {
				return err
			}
			if found == nil && cluster.Name == name {
				found = &cluster
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, name)
	}
	return found, nil
}

// ListClusters returns every registered cluster sorted by name
func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).ForEach(func(k, v []byte) error {
			var cluster types.Cluster
			if err := json.Unmarshal(v, &cluster); err != nil {
				return err
			}
			clusters = append(clusters, &cluster)
			return nil
		})
	})
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Name < clusters[j].Name
	})
	return clusters, err
}

// UpdateCluster overwrites an existing cluster
func (s *BoltStore) UpdateCluster(cluster *types.Cluster) error {
	if _, err := s.GetCluster(cluster.ID); err != nil {
		return err
	}
	return s.CreateCluster(cluster)
}

func (s *BoltStore) DeleteCluster(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrClusterNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// Setting operations
func (s *BoltStore) SaveSetting(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), value)
	})
}

func (s *BoltStore) GetSetting(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrSettingNotFound, key)
		}
		// Make a copy since data is only valid during transaction
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	return value, err
}

func (s *BoltStore) DeleteSetting(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(key))
	})
}
