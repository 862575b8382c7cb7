package kube

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	sigsyaml "sigs.k8s.io/yaml"
)

// Decode splits a multi-document manifest into objects. Empty documents
// are skipped.
func Decode(manifest []byte) ([]*unstructured.Unstructured, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))

	var objects []*unstructured.Unstructured
	for docIndex := 0; ; docIndex++ {
		doc, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read manifest document %d: %w", docIndex, err)
		}

		data, err := sigsyaml.YAMLToJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest document %d: %w", docIndex, err)
		}
		if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
			continue
		}

		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("failed to decode manifest document %d: %w", docIndex, err)
		}
		if obj.GetName() == "" {
			return nil, fmt.Errorf("manifest document %d (%s) has no name", docIndex, obj.GetKind())
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

// ManifestHashAnnotation records the hash of the rendered object that was
// last applied.
const ManifestHashAnnotation = "vpsctl.io/manifest-hash"

// ManifestHash hashes an object as rendered, before any annotation is added.
func ManifestHash(obj *unstructured.Unstructured) (string, error) {
	data, err := obj.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal object to JSON: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ManifestApplied reports whether every object in the manifest exists and
// was last applied from the same rendered content.
func (c *Client) ManifestApplied(ctx context.Context, manifest []byte) (bool, error) {
	objects, err := Decode(manifest)
	if err != nil {
		return false, err
	}
	if err := c.connect(); err != nil {
		return false, err
	}

	for _, obj := range objects {
		want, err := ManifestHash(obj)
		if err != nil {
			return false, err
		}
		resource, err := c.resourceFor(obj)
		if err != nil {
			// A kind the API server does not know yet cannot have objects.
			if meta.IsNoMatchError(err) {
				return false, nil
			}
			return false, err
		}

		live, err := resource.Get(ctx, obj.GetName(), metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get %s %s: %w", obj.GetKind(), describe(obj), err)
		}
		if live.GetAnnotations()[ManifestHashAnnotation] != want {
			return false, nil
		}
	}
	return true, nil
}

// Apply server-side applies every object in the manifest.
func (c *Client) Apply(ctx context.Context, manifest []byte) error {
	objects, err := Decode(manifest)
	if err != nil {
		return err
	}
	if err := c.connect(); err != nil {
		return err
	}

	for _, obj := range objects {
		if err := c.applyObject(ctx, obj); err != nil {
			return fmt.Errorf("failed to apply %s %s: %w", obj.GetKind(), describe(obj), err)
		}
	}
	return nil
}

func (c *Client) applyObject(ctx context.Context, obj *unstructured.Unstructured) error {
	hash, err := ManifestHash(obj)
	if err != nil {
		return err
	}
	annotations := obj.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[ManifestHashAnnotation] = hash
	obj.SetAnnotations(annotations)

	resource, err := c.resourceFor(obj)
	if err != nil {
		return err
	}

	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal object to JSON: %w", err)
	}

	force := true
	_, err = resource.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	if err != nil {
		return fmt.Errorf("server-side apply failed: %w", err)
	}
	return nil
}

// resourceFor maps an object onto its dynamic resource interface,
// refreshing discovery once when the kind is not yet known.
func (c *Client) resourceFor(obj *unstructured.Unstructured) (dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" {
		return nil, fmt.Errorf("object has no kind set")
	}

	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if meta.IsNoMatchError(err) {
		if rerr := c.refreshDiscovery(); rerr != nil {
			return nil, rerr
		}
		mapping, err = c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}

	resource := c.dynamicClient.Resource(mapping.Resource)
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return resource, nil
	}

	namespace := obj.GetNamespace()
	if namespace == "" {
		namespace = "default"
		obj.SetNamespace(namespace)
	}
	return resource.Namespace(namespace), nil
}

func describe(obj *unstructured.Unstructured) string {
	if obj.GetNamespace() == "" {
		return obj.GetName()
	}
	return obj.GetNamespace() + "/" + obj.GetName()
}
