package health

import (
	"fmt"
	"time"

	"github.com/cuemby/launcher/pkg/types"
)

// DefaultRelease is the engine release name when a cluster sets none
const DefaultRelease = "local"

// FileServerAddress is where the MicroK8s local file server listens
const FileServerAddress = "127.0.0.1:8642"

// Definition declares one status check
type Definition struct {
	ID    string
	Label string
	Kind  types.StatusKind

	// Probe is a shell script; Address, when set, replaces it with a TCP check
	Probe   string
	Address string

	RequiresSudo    bool
	Required        bool
	RippleStackOnly bool
	// Guarded probes only run while the cluster runtime is up
	Guarded bool
}

func system(id, label, probe string) Definition {
	return Definition{ID: id, Label: label, Kind: types.KindSystem, Probe: probe, Required: true}
}

func app(id, label, probe string) Definition {
	return Definition{ID: id, Label: label, Kind: types.KindApp, Probe: probe, Required: true, Guarded: true}
}

// Catalog returns every check for a cluster type, ripple stack checks
// included, in display order
func Catalog(t types.ClusterType, release string) []Definition {
	if release == "" {
		release = DefaultRelease
	}
	helm := func(suffix string) string {
		if suffix == "" {
			return fmt.Sprintf("helm status %s;", release)
		}
		return fmt.Sprintf("helm status %s-%s;", release, suffix)
	}

	defs := []Definition{
		system("node", "Node", "node --version;"),
		system("npm", "npm", "npm --version;"),
		system("python", "Python", "pip3 --version && python3 --version;"),
		system("make", "Make", "make --version;"),
		system("git", "Git", "git --version;"),
		system("docker", "Docker", "docker --version;"),
		system("dockercompose", "Docker Compose", "docker-compose --version;"),
	}

	if t == types.ClusterTypeMicroK8s {
		defs = append(defs,
			system("kubectl", "kubectl", "kubectl version --client --output=yaml;"),
			system("helm", "Helm", "helm version;"),
			Definition{ID: "mysql", Label: "MySql", Kind: types.KindApp, Probe: "docker top xrengine_minikube_db;", Required: true, RequiresSudo: true},
			app("microk8s", "MicroK8s", "microk8s version; microk8s status;"),
			app("ingress", "Ingress", "kubectl exec -i -n ingress $(kubectl get pods -n ingress -l name=nginx-ingress-microk8s --field-selector=status.phase==Running -o jsonpath='{.items[0].metadata.name}') -- /nginx-ingress-controller --version;"),
			app("redis", "Redis", helm("redis")),
			app("agones", "Agones", "helm status agones;"),
			Definition{ID: "fileserver", Label: "Local File Server", Kind: types.KindApp, Address: FileServerAddress, Required: true},
			app("hostfile", "Hostfile", "grep -q '127.0.0.1 local.etherealengine.com' /etc/hosts || { echo '*.etherealengine.com entries missing or outdated' >&2; exit 1; }"),
		)
	} else {
		defs = append(defs,
			Definition{ID: "virtualbox", Label: "VirtualBox", Kind: types.KindSystem, Probe: "vboxmanage --version;"},
			system("kubectl", "kubectl", "kubectl version --client --output=yaml;"),
			system("helm", "Helm", "helm version;"),
			Definition{ID: "mysql", Label: "MySql", Kind: types.KindApp, Probe: "docker top ir-engine_minikube_db;", Required: true, RequiresSudo: true},
			Definition{ID: "minio", Label: "MinIO", Kind: types.KindApp, Probe: "docker top ir-engine_minio_s3;", Required: true, RequiresSudo: true},
			app("minikube", "Minikube", "minikube version; minikube status;"),
			app("ingress", "Ingress", "ingress_ns='ingress-nginx'; podname=$(kubectl get pods -n $ingress_ns -l app.kubernetes.io/name=ingress-nginx --field-selector=status.phase==Running -o jsonpath='{.items[0].metadata.name}'); kubectl exec -i -n $ingress_ns $podname -- /nginx-ingress-controller --version;"),
			app("redis", "Redis", helm("redis")),
			app("agones", "Agones", "helm status agones;"),
			app("hostfile", "Hostfile", `MINIKUBE_IP=$(minikube ip)
if ! grep -q "local.ir-engine.org" /etc/hosts; then echo "*.ir-engine.org entries does not exist" >&2; exit 1; fi
if ! grep -q "$MINIKUBE_IP" /etc/hosts; then echo "*.ir-engine.org entries outdated" >&2; exit 1; fi
echo "*.ir-engine.org entries exists";`),
		)
	}

	rippled := app("rippled", "Rippled", helm("rippled"))
	rippled.RippleStackOnly = true
	ipfs := app("ipfs", "IPFS", helm("ipfs"))
	ipfs.RippleStackOnly = true

	engine := app("engine", "Infinite Reality Engine", helm(""))
	engine.Kind = types.KindEngine

	return append(defs, rippled, ipfs, engine)
}

// Select drops ripple stack checks unless the stack is enabled
func Select(defs []Definition, rippleStack bool) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.RippleStackOnly && !rippleStack {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Declare returns the entry of a check that has not produced a result yet
func Declare(def Definition, status types.Status) types.StatusEntry {
	return types.StatusEntry{
		ID:              def.ID,
		Label:           def.Label,
		Status:          status,
		Required:        def.Required,
		RequiresSudo:    def.RequiresSudo,
		RippleStackOnly: def.RippleStackOnly,
	}
}

// DeclaredBundle lays the definitions out as a status bundle, every entry in status
func DeclaredBundle(defs []Definition, status types.Status) types.StatusBundle {
	bundle := types.StatusBundle{
		SystemStatus: []types.StatusEntry{},
		AppStatus:    []types.StatusEntry{},
		EngineStatus: []types.StatusEntry{},
	}
	for _, d := range defs {
		entry := Declare(d, status)
		switch d.Kind {
		case types.KindSystem:
			bundle.SystemStatus = append(bundle.SystemStatus, entry)
		case types.KindApp:
			bundle.AppStatus = append(bundle.AppStatus, entry)
		case types.KindEngine:
			bundle.EngineStatus = append(bundle.EngineStatus, entry)
		}
	}
	return bundle
}

// Entry converts the result of a check into its status entry
func Entry(def Definition, result Result) types.StatusEntry {
	entry := Declare(def, types.StatusConfigured)
	entry.Detail = result.Message

	switch {
	case result.Healthy:
	case result.RuntimeNotConfigured:
		entry.Status = types.StatusNotConfigured
	case result.Ran:
		entry.Status = types.StatusNotConfigured
	default:
		entry.Status = types.StatusError
	}
	return entry
}

// ProbeOptions configure the checker built for a definition
type ProbeOptions struct {
	Guard    Guard
	Password string
	Timeout  time.Duration
}

// NewChecker builds the checker for a definition
func NewChecker(def Definition, opts ProbeOptions) Checker {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}

	var probe Checker
	if def.Address != "" {
		probe = NewTCPChecker(def.Address)
	} else {
		exec := NewExecChecker(def.Probe).WithTimeout(timeout)
		if def.RequiresSudo && opts.Password != "" {
			exec.WithSudo(opts.Password)
		}
		probe = exec
	}

	if def.Guarded && opts.Guard != nil {
		return &GuardedChecker{Guard: opts.Guard, Probe: probe}
	}
	return probe
}
