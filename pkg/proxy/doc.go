// Package proxy generates the Kubernetes and Traefik manifests that expose
// services running outside the cluster through the Traefik reverse proxy.
//
// Services are read from a CSV table with the columns Name, Source,
// Protocol, IP and Port. Each service gets its own directory containing:
//
//	01-service-endpoints.yaml  a headless Service and its Endpoints
//	02-transport.yaml          a ServersTransport (https back-ends only)
//	03-ingressroute.yaml       an IngressRoute terminating TLS
package proxy
