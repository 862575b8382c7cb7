// Package manifests renders the Kubernetes objects and Helm values the
// cluster playbook installs.
package manifests

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed files/*.tmpl
var files embed.FS

// Manifest names.
const (
	ClusterIssuer     = "cluster-issuer"
	DatabaseNamespace = "database-namespace"
	TimescaleDB       = "timescaledb"
	Web               = "web"

	IngressNginxValues = "ingress-nginx-values"
	CertManagerValues  = "cert-manager-values"
)

// Values parameterizes every manifest.
type Values struct {
	Domain string
	Email  string

	IssuerName   string
	ACMEServer   string
	IngressClass string

	DatabaseNamespace string
	DatabaseName      string
	DatabaseImage     string
	DatabaseStorage   string
	DatabaseSecret    string
	Superuser         string
	PasswordKey       string

	WebNamespace string
	WebImage     string
}

// DefaultValues returns values for a domain and ACME contact.
func DefaultValues(domain, email string) Values {
	return Values{
		Domain:            domain,
		Email:             email,
		IssuerName:        "letsencrypt",
		ACMEServer:        "https://acme-v02.api.letsencrypt.org/directory",
		IngressClass:      "nginx",
		DatabaseNamespace: "database",
		DatabaseName:      "timescaledb",
		DatabaseImage:     "timescale/timescaledb:latest-pg16",
		DatabaseStorage:   "10Gi",
		DatabaseSecret:    "timescaledb",
		Superuser:         "postgres",
		PasswordKey:       "POSTGRES_PASSWORD",
		WebNamespace:      "web",
		WebImage:          "traefik/whoami:v1.10",
	}
}

// DatabaseSelector selects the database pod.
func (v Values) DatabaseSelector() string {
	return "app.kubernetes.io/name=" + v.DatabaseName
}

// Render renders a named manifest.
func Render(name string, values Values) ([]byte, error) {
	path := "files/" + name + ".yaml.tmpl"
	content, err := files.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unknown manifest %q", name)
	}

	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// HelmValues renders a values template and decodes it for the Helm SDK.
func HelmValues(name string, values Values) (map[string]any, error) {
	data, err := Render(name, values)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if err := sigsyaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding values %s: %w", name, err)
	}
	return out, nil
}
