package workloads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// DefaultNamespace is where the engine release is installed
const DefaultNamespace = "default"

var (
	// ErrPodNotFound is returned when the named pod does not exist
	ErrPodNotFound = errors.New("pod not found")
	// ErrContainerNotFound is returned when the pod has no container with the given name
	ErrContainerNotFound = errors.New("container not found")
)

// Selector picks pods in two stages. Labels is evaluated by the API server.
// NamePrefix is applied afterwards on the returned names, because a label
// selector cannot express "name starts with". Roles whose pods share labels
// with unrelated pods, such as autoscaled instance servers, need both.
type Selector struct {
	Labels     string
	NamePrefix string
}

// Matches reports whether name passes the client side stage
func (s Selector) Matches(name string) bool {
	return s.NamePrefix == "" || strings.HasPrefix(name, s.NamePrefix)
}

func (s Selector) listOptions() metav1.ListOptions {
	return metav1.ListOptions{LabelSelector: s.Labels}
}

// Client queries workloads of one namespace
type Client struct {
	clientset kubernetes.Interface
	namespace string
	logger    zerolog.Logger
}

// NewClient creates a workload client. An empty namespace means DefaultNamespace.
func NewClient(clientset kubernetes.Interface, namespace string) *Client {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Client{
		clientset: clientset,
		namespace: namespace,
		logger:    log.WithComponent("workloads"),
	}
}

func observe(operation string, err error) {
	metrics.WorkloadQueriesTotal.WithLabelValues(operation, metrics.ResultLabel(err)).Inc()
}

// ListPods returns the pods matching sel in the order the server listed them
func (c *Client) ListPods(ctx context.Context, sel Selector) (pods []types.WorkloadPod, err error) {
	defer func() { observe("list_pods", err) }()

	list, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, sel.listOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	pods = make([]types.WorkloadPod, 0, len(list.Items))
	for i := range list.Items {
		if !sel.Matches(list.Items[i].Name) {
			continue
		}
		pods = append(pods, podInfo(&list.Items[i]))
	}
	return pods, nil
}

// RemovePod deletes a pod and returns what it looked like before deletion
func (c *Client) RemovePod(ctx context.Context, name string) (pod *types.WorkloadPod, err error) {
	defer func() { observe("remove_pod", err) }()

	pods := c.clientset.CoreV1().Pods(c.namespace)

	current, err := pods.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, c.podError(name, err)
	}

	if err := pods.Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return nil, c.podError(name, err)
	}

	info := podInfo(current)
	c.logger.Info().Str("pod", name).Msg("Pod removed")
	return &info, nil
}

// GetPodLogs returns the log of one container. An existing container with no
// output yields an empty string and no error.
func (c *Client) GetPodLogs(ctx context.Context, podName, containerName string) (logs string, err error) {
	defer func() { observe("pod_logs", err) }()

	pods := c.clientset.CoreV1().Pods(c.namespace)

	pod, err := pods.Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return "", c.podError(podName, err)
	}
	if !hasContainer(pod, containerName) {
		return "", fmt.Errorf("%w: %s in pod %s", ErrContainerNotFound, containerName, podName)
	}

	stream, err := pods.GetLogs(podName, &corev1.PodLogOptions{Container: containerName}).Stream(ctx)
	if err != nil {
		return "", c.podError(podName, err)
	}
	defer stream.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return "", fmt.Errorf("failed to read logs of %s/%s: %w", podName, containerName, err)
	}
	return buf.String(), nil
}

// ListDeployments returns the deployments matching sel
func (c *Client) ListDeployments(ctx context.Context, sel Selector) (out []types.WorkloadDeployment, err error) {
	defer func() { observe("list_deployments", err) }()

	list, err := c.clientset.AppsV1().Deployments(c.namespace).List(ctx, sel.listOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	out = make([]types.WorkloadDeployment, 0, len(list.Items))
	for _, d := range list.Items {
		if !sel.Matches(d.Name) {
			continue
		}
		var replicas int32
		if d.Spec.Replicas != nil {
			replicas = *d.Spec.Replicas
		}
		out = append(out, types.WorkloadDeployment{
			Name:              d.Name,
			Replicas:          replicas,
			ReadyReplicas:     d.Status.ReadyReplicas,
			AvailableReplicas: d.Status.AvailableReplicas,
		})
	}
	return out, nil
}

// ListConfigMaps returns the config maps matching sel
func (c *Client) ListConfigMaps(ctx context.Context, sel Selector) (out []corev1.ConfigMap, err error) {
	defer func() { observe("list_configmaps", err) }()

	list, err := c.clientset.CoreV1().ConfigMaps(c.namespace).List(ctx, sel.listOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list config maps: %w", err)
	}

	out = slices.DeleteFunc(list.Items, func(cm corev1.ConfigMap) bool {
		return !sel.Matches(cm.Name)
	})
	return out, nil
}

func (c *Client) podError(name string, err error) error {
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrPodNotFound, name)
	}
	return fmt.Errorf("pod %s: %w", name, err)
}

func hasContainer(pod *corev1.Pod, name string) bool {
	for _, c := range pod.Spec.Containers {
		if c.Name == name {
			return true
		}
	}
	for _, c := range pod.Spec.InitContainers {
		if c.Name == name {
			return true
		}
	}
	return false
}

func podInfo(pod *corev1.Pod) types.WorkloadPod {
	info := types.WorkloadPod{
		Name:       pod.Name,
		Status:     podPhase(pod.Status.Phase),
		Containers: make([]types.WorkloadContainer, 0, len(pod.Status.ContainerStatuses)),
	}
	if pod.Status.StartTime != nil {
		info.Age = pod.Status.StartTime.Time
	}

	for _, cs := range pod.Status.ContainerStatuses {
		container := types.WorkloadContainer{
			Name:     cs.Name,
			Status:   containerState(cs.State),
			Ready:    cs.Ready,
			Restarts: cs.RestartCount,
			Image:    cs.Image,
		}
		if cs.Started != nil {
			container.Started = *cs.Started
		}
		info.Containers = append(info.Containers, container)
	}
	return info
}

func podPhase(phase corev1.PodPhase) types.PodStatus {
	switch phase {
	case corev1.PodRunning:
		return types.PodRunning
	case corev1.PodSucceeded, corev1.PodFailed:
		return types.PodTerminated
	case corev1.PodPending:
		return types.PodWaiting
	}
	return types.PodUndefined
}

func containerState(state corev1.ContainerState) types.PodStatus {
	switch {
	case state.Running != nil:
		return types.PodRunning
	case state.Terminated != nil:
		return types.PodTerminated
	case state.Waiting != nil:
		return types.PodWaiting
	}
	return types.PodUndefined
}
