package kube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const (
	testNamespace = "notes"
	testPVC       = "obsidian-vault"
	testNodePort  = 30222
)

func testNode(name, ip string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{
			Addresses: []corev1.NodeAddress{
				{Type: corev1.NodeHostName, Address: name},
				{Type: corev1.NodeInternalIP, Address: ip},
			},
		},
	}
}

func podUsingClaim(name, nodeName string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Spec: corev1.PodSpec{
			NodeName: nodeName,
			Volumes: []corev1.Volume{{
				Name: "data",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: testPVC},
				},
			}},
		},
	}
}

// clusterSimulator makes created pods run and gives created services a node port.
func clusterSimulator(client *fake.Clientset) {
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		pod := action.(k8stesting.CreateAction).GetObject().(*corev1.Pod)
		pod.Status.Phase = corev1.PodRunning
		return false, nil, nil
	})
	client.PrependReactor("create", "services", func(action k8stesting.Action) (bool, runtime.Object, error) {
		svc := action.(k8stesting.CreateAction).GetObject().(*corev1.Service)
		for i := range svc.Spec.Ports {
			svc.Spec.Ports[i].NodePort = testNodePort
		}
		return false, nil, nil
	})
}

func TestHelper_StartAndCleanup(t *testing.T) {
	client := fake.NewSimpleClientset(
		testNode("node-a", "10.0.0.5"),
		podUsingClaim("obsidian-0", "node-a"),
	)
	clusterSimulator(client)
	ctx := context.Background()

	h := NewHelper(client, Options{
		Namespace:     testNamespace,
		PVC:           testPVC,
		MountPath:     "/vault",
		AuthorizedKey: "ssh-ed25519 AAAA test",
		PollInterval:  10 * time.Millisecond,
	}, nil)

	endpoint, err := h.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Endpoint{Host: "10.0.0.5", Port: testNodePort}, endpoint)

	pod, err := client.CoreV1().Pods(testNamespace).Get(ctx, h.Name(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "node-a", pod.Spec.NodeName)
	require.Len(t, pod.Spec.Containers, 1)
	container := pod.Spec.Containers[0]
	assert.Equal(t, DefaultImage, container.Image)
	assert.Equal(t, "/vault", container.VolumeMounts[0].MountPath)
	assert.Equal(t, []corev1.EnvVar{{Name: "AUTHORIZED_KEY", Value: "ssh-ed25519 AAAA test"}}, container.Env)
	assert.Equal(t, testPVC, pod.Spec.Volumes[0].PersistentVolumeClaim.ClaimName)

	svc, err := client.CoreV1().Services(testNamespace).Get(ctx, h.Name(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, corev1.ServiceTypeNodePort, svc.Spec.Type)
	assert.Equal(t, pod.Labels, svc.Spec.Selector)

	require.NoError(t, h.Cleanup(ctx))
	_, err = client.CoreV1().Pods(testNamespace).Get(ctx, h.Name(), metav1.GetOptions{})
	require.Error(t, err)
	_, err = client.CoreV1().Services(testNamespace).Get(ctx, h.Name(), metav1.GetOptions{})
	require.Error(t, err)

	// nothing left to delete
	require.NoError(t, h.Cleanup(ctx))
}

func TestHelper_NamesAreUnique(t *testing.T) {
	client := fake.NewSimpleClientset()
	a := NewHelper(client, Options{}, nil)
	b := NewHelper(client, Options{}, nil)
	assert.NotEqual(t, a.Name(), b.Name())
}

func TestHelper_PodFails(t *testing.T) {
	client := fake.NewSimpleClientset(
		testNode("node-a", "10.0.0.5"),
		podUsingClaim("obsidian-0", "node-a"),
	)
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		pod := action.(k8stesting.CreateAction).GetObject().(*corev1.Pod)
		pod.Status.Phase = corev1.PodFailed
		return false, nil, nil
	})

	h := NewHelper(client, Options{
		Namespace:    testNamespace,
		PVC:          testPVC,
		MountPath:    "/vault",
		PollInterval: 10 * time.Millisecond,
	}, nil)

	_, err := h.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
	require.NoError(t, h.Cleanup(context.Background()))
}

func TestGetNodeInfo_FromPersistentVolumeAffinity(t *testing.T) {
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: testPVC, Namespace: testNamespace},
		Spec:       corev1.PersistentVolumeClaimSpec{VolumeName: "pv-1"},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimBound},
	}
	pv := &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{Name: "pv-1"},
		Spec: corev1.PersistentVolumeSpec{
			NodeAffinity: &corev1.VolumeNodeAffinity{
				Required: &corev1.NodeSelector{
					NodeSelectorTerms: []corev1.NodeSelectorTerm{{
						MatchExpressions: []corev1.NodeSelectorRequirement{{
							Key:      corev1.LabelHostname,
							Operator: corev1.NodeSelectorOpIn,
							Values:   []string{"node-b"},
						}},
					}},
				},
			},
		},
	}
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-b"},
		Status: corev1.NodeStatus{
			Addresses: []corev1.NodeAddress{{Type: corev1.NodeHostName, Address: "node-b.local"}},
		},
	}
	client := fake.NewSimpleClientset(pvc, pv, node)

	info, err := getNodeInfo(context.Background(), client, testNamespace, testPVC)
	require.NoError(t, err)
	assert.Equal(t, "node-b", info.name)
	assert.Equal(t, "node-b.local", info.addr)
}

func TestGetNodeInfo_UnboundClaim(t *testing.T) {
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: testPVC, Namespace: testNamespace},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimPending},
	}
	client := fake.NewSimpleClientset(pvc)

	_, err := getNodeInfo(context.Background(), client, testNamespace, testPVC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")
}

func TestGetNodeInfo_UnscheduledPodIgnored(t *testing.T) {
	client := fake.NewSimpleClientset(podUsingClaim("pending-0", ""))

	_, err := getNodeInfo(context.Background(), client, testNamespace, testPVC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get PVC")
}
