// Copyright 2017-2018 The Argo Authors
// Modifications Copyright 2024-2025 Jacob Colvin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Source:
// https://github.com/argoproj/gitops-engine/blob/54992bf42431e71f71f11647e82105530e56305e/pkg/utils/kube/kube.go#L304-L346

package kube

import (
	"bytes"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// ErrInvalidKubeResource is returned when a document is not a Kubernetes object.
var ErrInvalidKubeResource = errors.New("invalid kubernetes resource")

// Resource is a single document of a manifest file.
type Resource struct {
	Object *unstructured.Unstructured
	YAML   string
	// Source is the file the document came from, if any.
	Source string
}

// String returns "Kind namespace/name".
func (r *Resource) String() string {
	name := r.Object.GetName()
	if ns := r.Object.GetNamespace(); ns != "" {
		name = ns + "/" + name
	}

	return r.Object.GetKind() + " " + name
}

// SplitYAML splits a multi-document manifest into unstructured objects. On
// error, the objects parsed so far are returned alongside it.
func SplitYAML(source string, data []byte) ([]*Resource, error) {
	objs := []*Resource{}

	for i, doc := range splitDocuments(data) {
		u := &unstructured.Unstructured{}
		if err := yaml.Unmarshal([]byte(doc), &u.Object); err != nil {
			return objs, fmt.Errorf("%w: %s: document %d: %w", ErrInvalidKubeResource, source, i, err)
		}

		if u.Object == nil {
			continue
		}

		if u.GetKind() == "" || u.GetAPIVersion() == "" {
			return objs, fmt.Errorf("%w: %s: document %d: missing apiVersion or kind",
				ErrInvalidKubeResource, source, i)
		}

		objs = append(objs, &Resource{
			Object: u,
			YAML:   doc,
			Source: source,
		})
	}

	return objs, nil
}

// splitDocuments splits on "---" separator lines without re-encoding, so
// leading comments stay attached to their document.
func splitDocuments(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data, _ = bytes.CutPrefix(data, []byte("---\n"))
	data, _ = bytes.CutSuffix(bytes.TrimRight(data, "\n"), []byte("\n---"))

	var docs []string
	for doc := range bytes.SplitSeq(data, []byte("\n---\n")) {
		trimmed := bytes.TrimSpace(doc)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			docs = append(docs, string(trimmed))
		}
	}

	return docs
}
