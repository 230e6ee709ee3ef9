/*
Package storage persists the launcher's local registry in BoltDB.

The registry holds the clusters the user has added and a small settings
bucket for opaque values such as the encrypted sudo password. Deployment
state is never persisted: it is rebuilt from probes on every run.

	<dataDir>/launcher.db
	  clusters   cluster id -> JSON types.Cluster
	  settings   key        -> raw bytes

All reads use db.View and all writes db.Update, so concurrent readers never
observe a partial write.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.CreateCluster(&types.Cluster{
		ID:   uuid.New().String(),
		Name: "dev",
		Type: types.ClusterTypeMinikube,
	})

	clusters, err := store.ListClusters()

Lookups of unknown clusters return an error wrapping ErrClusterNotFound.
*/
package storage
