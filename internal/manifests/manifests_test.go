package manifests_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/felixgeelhaar/vpsctl/internal/manifests"
)

func documents(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var docs []map[string]any
	for _, part := range strings.Split(string(data), "\n---\n") {
		doc := map[string]any{}
		require.NoError(t, sigsyaml.Unmarshal([]byte(part), &doc))
		docs = append(docs, doc)
	}
	return docs
}

func TestRender_AllManifestsParse(t *testing.T) {
	t.Parallel()

	values := manifests.DefaultValues("App.Example.com", "ops@example.com")
	for _, name := range []string{
		manifests.ClusterIssuer,
		manifests.DatabaseNamespace,
		manifests.TimescaleDB,
		manifests.Web,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := manifests.Render(name, values)
			require.NoError(t, err)
			for _, doc := range documents(t, data) {
				assert.NotEmpty(t, doc["kind"])
				assert.NotEmpty(t, doc["apiVersion"])
			}
		})
	}
}

func TestRender_ClusterIssuer(t *testing.T) {
	t.Parallel()

	data, err := manifests.Render(manifests.ClusterIssuer, manifests.DefaultValues("example.com", "ops@example.com"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `email: "ops@example.com"`)
	assert.Contains(t, string(data), "ingressClassName: nginx")
}

func TestRender_WebUsesLowercaseDomain(t *testing.T) {
	t.Parallel()

	data, err := manifests.Render(manifests.Web, manifests.DefaultValues("App.Example.com", "ops@example.com"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `host: "app.example.com"`)
	assert.Contains(t, text, "secretName: app-example-com-tls")
	assert.Contains(t, text, "cert-manager.io/cluster-issuer: letsencrypt")
}

func TestRender_TimescaleDB(t *testing.T) {
	t.Parallel()

	values := manifests.DefaultValues("example.com", "ops@example.com")
	data, err := manifests.Render(manifests.TimescaleDB, values)
	require.NoError(t, err)

	docs := documents(t, data)
	require.Len(t, docs, 3)
	assert.Equal(t, "PersistentVolumeClaim", docs[0]["kind"])
	assert.Equal(t, "Deployment", docs[1]["kind"])
	assert.Equal(t, "Service", docs[2]["kind"])
	assert.Equal(t, "app.kubernetes.io/name=timescaledb", values.DatabaseSelector())
}

func TestRender_Unknown(t *testing.T) {
	t.Parallel()

	_, err := manifests.Render("nope", manifests.Values{})
	require.Error(t, err)
}

func TestHelmValues(t *testing.T) {
	t.Parallel()

	values, err := manifests.HelmValues(manifests.CertManagerValues, manifests.DefaultValues("example.com", "ops@example.com"))
	require.NoError(t, err)
	crds, ok := values["crds"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, crds["enabled"])

	values, err = manifests.HelmValues(manifests.IngressNginxValues, manifests.DefaultValues("example.com", "ops@example.com"))
	require.NoError(t, err)
	controller, ok := values["controller"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "DaemonSet", controller["kind"])
}
