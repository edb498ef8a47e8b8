package kube

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ErrLint is returned when a set of resources fails linting.
var ErrLint = errors.New("lint")

var (
	gvkService          = corev1.SchemeGroupVersion.WithKind("Service")
	gvkEndpoints        = corev1.SchemeGroupVersion.WithKind("Endpoints")
	gvkIngressRoute     = schema.FromAPIVersionAndKind(TraefikAPIVersion, "IngressRoute")
	gvkServersTransport = schema.FromAPIVersionAndKind(TraefikAPIVersion, "ServersTransport")
)

var hostMatch = regexp.MustCompile("^Host\\(`([^`]+)`\\)$")

type objectKey struct {
	kind      string
	namespace string
	name      string
}

// Lint converts every resource to its typed form, rejecting unknown kinds
// and fields, and checks that references between the resources resolve
// within the set. All problems are reported together.
func Lint(resources []*Resource) error {
	var errs field.ErrorList

	known := make(map[objectKey]bool, len(resources))
	for _, r := range resources {
		known[objectKey{r.Object.GetKind(), r.Object.GetNamespace(), r.Object.GetName()}] = true
	}

	for i, r := range resources {
		path := field.NewPath("resources").Index(i)
		if r.Source != "" {
			path = field.NewPath(r.Source).Index(i)
		}

		errs = append(errs, lintResource(path, r, known)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrLint, errs.ToAggregate())
	}

	return nil
}

func lintResource(path *field.Path, r *Resource, known map[objectKey]bool) field.ErrorList {
	var errs field.ErrorList

	meta := path.Child("metadata")
	if r.Object.GetName() == "" {
		errs = append(errs, field.Required(meta.Child("name"), ""))
	}
	if r.Object.GetNamespace() == "" {
		errs = append(errs, field.Required(meta.Child("namespace"), ""))
	}

	switch gvk := r.Object.GroupVersionKind(); gvk {
	case gvkService:
		var svc corev1.Service
		if err := convert(r, &svc); err != nil {
			return append(errs, field.Invalid(path, r.String(), err.Error()))
		}

		errs = append(errs, lintService(path.Child("spec"), &svc)...)

	case gvkEndpoints:
		var ep corev1.Endpoints //nolint:staticcheck // SA1019: Traefik external services still use Endpoints.
		if err := convert(r, &ep); err != nil {
			return append(errs, field.Invalid(path, r.String(), err.Error()))
		}

		errs = append(errs, lintEndpoints(path.Child("subsets"), &ep)...)

	case gvkServersTransport:
		var st ServersTransport
		if err := convert(r, &st); err != nil {
			return append(errs, field.Invalid(path, r.String(), err.Error()))
		}

	case gvkIngressRoute:
		var ir IngressRoute
		if err := convert(r, &ir); err != nil {
			return append(errs, field.Invalid(path, r.String(), err.Error()))
		}

		errs = append(errs, lintIngressRoute(path.Child("spec"), &ir, known)...)

	default:
		errs = append(errs, field.NotSupported(path.Child("kind"), gvk.String(), []string{
			gvkService.String(), gvkEndpoints.String(),
			gvkServersTransport.String(), gvkIngressRoute.String(),
		}))
	}

	return errs
}

func convert(r *Resource, out any) error {
	//nolint:wrapcheck // Reported as a field error.
	return runtime.DefaultUnstructuredConverter.FromUnstructuredWithValidation(r.Object.Object, out, true)
}

func lintService(path *field.Path, svc *corev1.Service) field.ErrorList {
	var errs field.ErrorList

	if len(svc.Spec.Ports) == 0 {
		errs = append(errs, field.Required(path.Child("ports"), "at least one port"))
	}

	for i, port := range svc.Spec.Ports {
		p := path.Child("ports").Index(i)
		for _, msg := range validation.IsValidPortNum(int(port.Port)) {
			errs = append(errs, field.Invalid(p.Child("port"), port.Port, msg))
		}
		if port.TargetPort.IntValue() != 0 {
			for _, msg := range validation.IsValidPortNum(port.TargetPort.IntValue()) {
				errs = append(errs, field.Invalid(p.Child("targetPort"), port.TargetPort.String(), msg))
			}
		}
	}

	return errs
}

//nolint:staticcheck // SA1019: Traefik external services still use Endpoints.
func lintEndpoints(path *field.Path, ep *corev1.Endpoints) field.ErrorList {
	var errs field.ErrorList

	if len(ep.Subsets) == 0 {
		errs = append(errs, field.Required(path, "at least one subset"))
	}

	for i, subset := range ep.Subsets {
		p := path.Index(i)
		if len(subset.Addresses) == 0 {
			errs = append(errs, field.Required(p.Child("addresses"), ""))
		}
		for j, addr := range subset.Addresses {
			errs = append(errs, validation.IsValidIP(p.Child("addresses").Index(j).Child("ip"), addr.IP)...)
		}
		for j, port := range subset.Ports {
			for _, msg := range validation.IsValidPortNum(int(port.Port)) {
				errs = append(errs, field.Invalid(p.Child("ports").Index(j).Child("port"), port.Port, msg))
			}
		}
	}

	return errs
}

func lintIngressRoute(path *field.Path, ir *IngressRoute, known map[objectKey]bool) field.ErrorList {
	var errs field.ErrorList

	if len(ir.Spec.Routes) == 0 {
		errs = append(errs, field.Required(path.Child("routes"), "at least one route"))
	}

	for i, route := range ir.Spec.Routes {
		p := path.Child("routes").Index(i)

		m := hostMatch.FindStringSubmatch(route.Match)
		if m == nil {
			errs = append(errs, field.Invalid(p.Child("match"), route.Match, "expected Host(`<host>`)"))
		} else {
			host := strings.ToLower(m[1])
			if len(validation.IsWildcardDNS1123Subdomain(host)) > 0 {
				for _, msg := range validation.IsDNS1123Subdomain(host) {
					errs = append(errs, field.Invalid(p.Child("match"), host, msg))
				}
			}
		}

		for j, svc := range route.Services {
			sp := p.Child("services").Index(j)
			if !known[objectKey{"Service", ir.Namespace, svc.Name}] {
				errs = append(errs, field.NotFound(sp.Child("name"), svc.Name))
			}
			if svc.ServersTransport != "" && !known[objectKey{"ServersTransport", ir.Namespace, svc.ServersTransport}] {
				errs = append(errs, field.NotFound(sp.Child("serversTransport"), svc.ServersTransport))
			}
		}
	}

	if ir.Spec.TLS != nil && ir.Spec.TLS.CertResolver == "" && ir.Spec.TLS.SecretName == "" {
		errs = append(errs, field.Required(path.Child("tls"), "certResolver or secretName"))
	}

	return errs
}
