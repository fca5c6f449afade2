package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
)

const (
	DefaultImage = "alpine"
	sshdPort     = 2525
	volumeName   = "vault"
	namePrefix   = "stressgen-"
)

const sshdScript = `
apk add --no-cache openssh &&
mkdir -p /root/.ssh &&
echo "$AUTHORIZED_KEY" > /root/.ssh/authorized_keys &&
chmod 700 /root/.ssh && chmod 600 /root/.ssh/authorized_keys &&
echo "PermitRootLogin prohibit-password" >> /etc/ssh/sshd_config &&
ssh-keygen -A &&
/usr/sbin/sshd -D -e -p 2525
`

type Options struct {
	Namespace     string
	PVC           string
	MountPath     string
	AuthorizedKey string

	// Optional
	Image          string
	ActiveDeadline time.Duration
	StartTimeout   time.Duration
	PollInterval   time.Duration
}

// Endpoint is the node address and node port the helper sshd is reachable on.
type Endpoint struct {
	Host string
	Port int
}

// Helper owns a temporary pod that mounts a PVC and serves it over SFTP,
// plus the NodePort service exposing it.
type Helper struct {
	client kubernetes.Interface
	opts   Options
	name   string
	log    *zap.Logger
}

func NewHelper(client kubernetes.Interface, opts Options, log *zap.Logger) *Helper {
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	if opts.ActiveDeadline == 0 {
		opts.ActiveDeadline = 12 * time.Hour
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 5 * time.Minute
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Helper{
		client: client,
		opts:   opts,
		name:   namePrefix + uuid.NewString(),
		log:    log,
	}
}

func (h *Helper) Name() string {
	return h.name
}

// Start schedules the helper pod next to the PVC, waits for it to run and exposes it.
// Cleanup must be called even when Start fails.
func (h *Helper) Start(ctx context.Context) (*Endpoint, error) {
	h.log.Info("fetching target node to schedule pod on", zap.String("pvc", h.opts.PVC))
	node, err := getNodeInfo(ctx, h.client, h.opts.Namespace, h.opts.PVC)
	if err != nil {
		return nil, err
	}
	h.log.Info("decided node", zap.String("name", node.name), zap.String("addr", node.addr))

	if err := h.createPod(ctx, node.name); err != nil {
		return nil, err
	}
	h.log.Info("pod running", zap.String("name", h.name))

	port, err := h.createNodePortService(ctx)
	if err != nil {
		return nil, err
	}
	h.log.Info("service created", zap.String("name", h.name), zap.Int32("port", port))

	return &Endpoint{Host: node.addr, Port: int(port)}, nil
}

// Cleanup deletes the service and the pod. Objects that are already gone are ignored.
func (h *Helper) Cleanup(ctx context.Context) error {
	var firstErr error
	err := h.client.CoreV1().Services(h.opts.Namespace).Delete(ctx, h.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		firstErr = fmt.Errorf("delete service: %w", err)
	}
	err = h.client.CoreV1().Pods(h.opts.Namespace).Delete(ctx, h.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) && firstErr == nil {
		firstErr = fmt.Errorf("delete pod: %w", err)
	}
	return firstErr
}

func (h *Helper) labels() map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":     "stressgen",
		"app.kubernetes.io/instance": h.name,
	}
}

func (h *Helper) createPod(ctx context.Context, nodeName string) error {
	activeDeadlineSeconds := int64(h.opts.ActiveDeadline.Seconds())
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      h.name,
			Namespace: h.opts.Namespace,
			Labels:    h.labels(),
		},
		Spec: corev1.PodSpec{
			NodeName:              nodeName,
			ActiveDeadlineSeconds: &activeDeadlineSeconds,
			RestartPolicy:         corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "sshd",
					Image:   h.opts.Image,
					Command: []string{"sh", "-c", sshdScript},
					Env: []corev1.EnvVar{
						{Name: "AUTHORIZED_KEY", Value: h.opts.AuthorizedKey},
					},
					VolumeMounts: []corev1.VolumeMount{
						{Name: volumeName, MountPath: h.opts.MountPath},
					},
					Ports: []corev1.ContainerPort{
						{ContainerPort: sshdPort},
					},
				},
			},
			Volumes: []corev1.Volume{
				{
					Name: volumeName,
					VolumeSource: corev1.VolumeSource{
						PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
							ClaimName: h.opts.PVC,
						},
					},
				},
			},
		},
	}
	if _, err := h.client.CoreV1().Pods(h.opts.Namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("create pod: %w", err)
	}

	err := wait.PollUntilContextTimeout(ctx, h.opts.PollInterval, h.opts.StartTimeout, true,
		func(ctx context.Context) (bool, error) {
			p, err := h.client.CoreV1().Pods(h.opts.Namespace).Get(ctx, h.name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}
			switch p.Status.Phase {
			case corev1.PodRunning:
				return true, nil
			case corev1.PodFailed, corev1.PodSucceeded:
				return false, fmt.Errorf("pod %s terminated: %s", h.name, p.Status.Phase)
			default:
				return false, nil
			}
		})
	if err != nil {
		return fmt.Errorf("wait for pod %s: %w", h.name, err)
	}
	return nil
}

func (h *Helper) createNodePortService(ctx context.Context) (int32, error) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      h.name,
			Namespace: h.opts.Namespace,
			Labels:    h.labels(),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: h.labels(),
			Ports: []corev1.ServicePort{
				{
					Name:       "ssh",
					Port:       sshdPort,
					TargetPort: intstr.FromInt32(sshdPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}

	created, err := h.client.CoreV1().Services(h.opts.Namespace).Create(ctx, svc, metav1.CreateOptions{})
	if err != nil {
		return -1, fmt.Errorf("create service: %w", err)
	}
	if len(created.Spec.Ports) == 0 || created.Spec.Ports[0].NodePort == 0 {
		return -1, fmt.Errorf("service %s has no node port allocated", h.name)
	}
	return created.Spec.Ports[0].NodePort, nil
}
