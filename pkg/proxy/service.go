package proxy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ErrInvalidService is returned when a service definition fails validation.
var ErrInvalidService = errors.New("invalid service")

// Protocol is the scheme Traefik uses to reach a back-end.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Protocols lists the supported protocols.
var Protocols = []Protocol{ProtocolHTTP, ProtocolHTTPS}

// Service is a back-end exposed through the reverse proxy.
type Service struct {
	// Name is used for the directory and every generated resource.
	Name string
	// Host is the public host name matched by the IngressRoute.
	Host     string
	Protocol Protocol
	// IP is the back-end address outside the cluster.
	IP   string
	Port int
	// Line is the CSV line the service was read from, or zero.
	Line int
}

// Secure reports whether the back-end is reached over TLS.
func (s Service) Secure() bool {
	return s.Protocol == ProtocolHTTPS
}

// TransportName is the name of the ServersTransport for a secure back-end.
func (s Service) TransportName() string {
	return s.Name + "-transport"
}

// Validate checks the service against the naming rules of the resources it
// is rendered into.
func (s Service) Validate() error {
	errs := s.validate(field.NewPath("service"))
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidService, s.Name, errs.ToAggregate())
	}

	return nil
}

func (s Service) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList

	if s.Name == "" {
		errs = append(errs, field.Required(path.Child("name"), ""))
	} else {
		for _, msg := range validation.IsDNS1123Label(s.Name) {
			errs = append(errs, field.Invalid(path.Child("name"), s.Name, msg))
		}
		// The transport name must also be a valid object name.
		for _, msg := range validation.IsDNS1123Subdomain(s.TransportName()) {
			errs = append(errs, field.Invalid(path.Child("name"), s.Name, msg))
		}
	}

	// Host matching is case-insensitive, so only the lowercase form must be valid.
	host := strings.ToLower(s.Host)

	switch {
	case host == "":
		errs = append(errs, field.Required(path.Child("host"), ""))
	case len(validation.IsWildcardDNS1123Subdomain(host)) == 0:
	default:
		for _, msg := range validation.IsDNS1123Subdomain(host) {
			errs = append(errs, field.Invalid(path.Child("host"), s.Host, msg))
		}
	}

	switch s.Protocol {
	case ProtocolHTTP, ProtocolHTTPS:
	case "":
		errs = append(errs, field.Required(path.Child("protocol"), ""))
	default:
		errs = append(errs, field.NotSupported(path.Child("protocol"), s.Protocol, Protocols))
	}

	if s.IP == "" {
		errs = append(errs, field.Required(path.Child("ip"), ""))
	} else {
		errs = append(errs, validation.IsValidIP(path.Child("ip"), s.IP)...)
	}

	for _, msg := range validation.IsValidPortNum(s.Port) {
		errs = append(errs, field.Invalid(path.Child("port"), strconv.Itoa(s.Port), msg))
	}

	return errs
}
