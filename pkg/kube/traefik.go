package kube

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// TraefikAPIVersion is the API version of the Traefik resources opsbox emits.
const TraefikAPIVersion = "traefik.io/v1alpha1"

// IngressRoute is the subset of Traefik's IngressRoute CRD that opsbox
// generates.
type IngressRoute struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec IngressRouteSpec `json:"spec"`
}

type IngressRouteSpec struct {
	TLS         *TLS     `json:"tls,omitempty"`
	EntryPoints []string `json:"entryPoints,omitempty"`
	Routes      []Route  `json:"routes"`
}

type Route struct {
	Match    string             `json:"match"`
	Kind     string             `json:"kind,omitempty"`
	Services []LoadBalancerSpec `json:"services,omitempty"`
}

// LoadBalancerSpec references a Kubernetes Service backing a [Route].
type LoadBalancerSpec struct {
	Port             intstr.IntOrString `json:"port,omitempty"`
	Name             string             `json:"name"`
	Scheme           string             `json:"scheme,omitempty"`
	ServersTransport string             `json:"serversTransport,omitempty"`
}

type TLS struct {
	CertResolver string `json:"certResolver,omitempty"`
	SecretName   string `json:"secretName,omitempty"`
}

// ServersTransport is the subset of Traefik's ServersTransport CRD that
// opsbox generates.
type ServersTransport struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ServersTransportSpec `json:"spec"`
}

type ServersTransportSpec struct {
	ServerName         string   `json:"serverName,omitempty"`
	RootCAsSecrets     []string `json:"rootCAsSecrets,omitempty"`
	InsecureSkipVerify bool     `json:"insecureSkipVerify,omitempty"`
}
