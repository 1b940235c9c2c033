// Package kube models Kubernetes resources parsed from YAML manifests.
//
// It splits multi-document YAML into individual resources and exposes
// accessors for the common identifying fields (apiVersion, kind,
// metadata.namespace, metadata.name) without requiring a schema.
package kube
