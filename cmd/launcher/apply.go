package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cuemby/launcher/pkg/storage"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const resourceAPIVersion = "launcher/v1"

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a cluster definition file",
	Long: `Create or update clusters from a YAML file.

A file may hold several documents separated by '---'. Clusters are matched
by metadata.name; an existing cluster keeps its ID.

Example:
  apiVersion: launcher/v1
  kind: Cluster
  metadata:
    name: dev
  spec:
    type: minikube
    configs:
      ENGINE_PATH: /home/me/src/engine
      CONFIGURE_SCRIPT: /home/me/src/ops/configure.sh
    variables:
      ENABLE_RIPPLE_STACK: "true"

  launcher apply -f dev.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// ClusterResource is one document of an apply file
type ClusterResource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       ClusterSpec      `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

type ClusterSpec struct {
	Type      string            `yaml:"type"`
	Configs   map[string]string `yaml:"configs,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	resources, err := parseResources(data)
	if err != nil {
		return err
	}

	registry, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	for _, r := range resources {
		if err := applyCluster(registry, r); err != nil {
			return err
		}
	}
	return nil
}

func parseResources(data []byte) ([]*ClusterResource, error) {
	var resources []*ClusterResource

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	for {
		var r ClusterResource
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}

		if r.APIVersion != resourceAPIVersion {
			return nil, fmt.Errorf("unsupported apiVersion %q: only %q is supported", r.APIVersion, resourceAPIVersion)
		}
		if r.Kind != "Cluster" {
			return nil, fmt.Errorf("unsupported resource kind: %s", r.Kind)
		}
		if r.Metadata.Name == "" {
			return nil, fmt.Errorf("missing required field: metadata.name")
		}
		resources = append(resources, &r)
	}

	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources found")
	}
	return resources, nil
}

func applyCluster(registry storage.Store, r *ClusterResource) error {
	clusterType, err := parseClusterType(r.Spec.Type)
	if err != nil {
		return fmt.Errorf("cluster %s: %w", r.Metadata.Name, err)
	}

	cluster := &types.Cluster{
		Name:      r.Metadata.Name,
		Type:      clusterType,
		Configs:   r.Spec.Configs,
		Variables: r.Spec.Variables,
	}

	existing, err := registry.GetClusterByName(r.Metadata.Name)
	switch {
	case err == nil:
		cluster.ID = existing.ID
		if err := registry.UpdateCluster(cluster); err != nil {
			return fmt.Errorf("failed to update cluster: %w", err)
		}
		fmt.Printf("✓ Cluster updated: %s\n", cluster.Name)
	case isNotFound(err):
		cluster.ID = uuid.New().String()
		if err := registry.CreateCluster(cluster); err != nil {
			return fmt.Errorf("failed to create cluster: %w", err)
		}
		fmt.Printf("✓ Cluster created: %s (ID: %s)\n", cluster.Name, cluster.ID)
	default:
		return err
	}

	for _, key := range sortedKeys(cluster.Configs) {
		fmt.Printf("  %s=%s\n", key, cluster.Configs[key])
	}
	return nil
}
