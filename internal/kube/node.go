package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

type nodeInfo struct {
	name string
	addr string
}

// getNodeInfo finds the node the PVC is attached to and an address reachable from outside the cluster network.
func getNodeInfo(ctx context.Context, client kubernetes.Interface, namespace, pvc string) (*nodeInfo, error) {
	pvcNodeName, err := getPVCNodeName(ctx, client, namespace, pvc)
	if err != nil {
		return nil, err
	}

	node, err := client.CoreV1().Nodes().Get(ctx, pvcNodeName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", pvcNodeName, err)
	}

	nodeAddr := nodeAddress(node, corev1.NodeInternalIP)
	if nodeAddr == "" {
		nodeAddr = nodeAddress(node, corev1.NodeHostName)
	}
	if nodeAddr == "" {
		return nil, fmt.Errorf("cannot decide node IP: %s", pvcNodeName)
	}

	return &nodeInfo{
		name: pvcNodeName,
		addr: nodeAddr,
	}, nil
}

func nodeAddress(node *corev1.Node, addrType corev1.NodeAddressType) string {
	for _, addr := range node.Status.Addresses {
		if addr.Type == addrType {
			return addr.Address
		}
	}
	return ""
}

func getPVCNodeName(ctx context.Context, client kubernetes.Interface, namespace, pvcName string) (string, error) {
	// 1) a scheduled pod that already mounts the claim
	pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("listing pods: %w", err)
	}
	for pi := range pods.Items {
		pod := &pods.Items[pi]
		if pod.Spec.NodeName == "" {
			continue
		}
		for vi := range pod.Spec.Volumes {
			vol := pod.Spec.Volumes[vi]
			if vol.PersistentVolumeClaim != nil && vol.PersistentVolumeClaim.ClaimName == pvcName {
				return pod.Spec.NodeName, nil
			}
		}
	}

	// 2) PVC -> PV -> node affinity
	pvc, err := client.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, pvcName, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get PVC: %w", err)
	}
	if pvc.Status.Phase != corev1.ClaimBound || pvc.Spec.VolumeName == "" {
		return "", fmt.Errorf("PVC %s is not bound to any PV", pvcName)
	}

	pv, err := client.CoreV1().PersistentVolumes().Get(ctx, pvc.Spec.VolumeName, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get PV %s: %w", pvc.Spec.VolumeName, err)
	}
	if pv.Spec.NodeAffinity != nil && pv.Spec.NodeAffinity.Required != nil {
		for _, term := range pv.Spec.NodeAffinity.Required.NodeSelectorTerms {
			for _, expr := range term.MatchExpressions {
				if expr.Key == corev1.LabelHostname &&
					expr.Operator == corev1.NodeSelectorOpIn &&
					len(expr.Values) > 0 {
					return expr.Values[0], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unable to determine node for PVC %q", pvcName)
}
