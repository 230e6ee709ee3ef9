package workloads

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cuemby/launcher/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"k8s.io/klog/v2"
)

func init() {
	// Keep client-go from writing its own logs
	klog.SetOutput(io.Discard)
	klog.LogToStderr(false)

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fs)
}

// KubeContext returns the kubeconfig context a cluster type installs
func KubeContext(t types.ClusterType) string {
	switch t {
	case types.ClusterTypeMicroK8s:
		return "microk8s"
	default:
		return "minikube"
	}
}

// DefaultKubeconfig returns ~/.kube/config, or "" when there is no home directory
func DefaultKubeconfig() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}

// NewClientset builds a clientset for the given kubeconfig path and context.
// An empty path means the default kubeconfig; an empty context means the
// current one.
func NewClientset(kubeconfigPath, kubeContext string) (kubernetes.Interface, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = DefaultKubeconfig()
	}

	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}

// NewClientForCluster connects to the Kubernetes API of a local cluster
func NewClientForCluster(cluster *types.Cluster, kubeconfigPath string) (*Client, error) {
	clientset, err := NewClientset(kubeconfigPath, KubeContext(cluster.Type))
	if err != nil {
		return nil, err
	}
	return NewClient(clientset, DefaultNamespace), nil
}
