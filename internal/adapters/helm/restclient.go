package helm

import (
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// restClientGetter implements genericclioptions.RESTClientGetter over
// kubeconfig bytes, so Helm never reads KUBECONFIG or ~/.kube/config.
type restClientGetter struct {
	kubeconfig []byte
	namespace  string
	restConfig *rest.Config
}

func newRESTClientGetter(kubeconfig []byte, namespace string) *restClientGetter {
	return &restClientGetter{kubeconfig: kubeconfig, namespace: namespace}
}

// ToRESTConfig returns a cached REST config built from the kubeconfig.
func (g *restClientGetter) ToRESTConfig() (*rest.Config, error) {
	if g.restConfig != nil {
		return g.restConfig, nil
	}

	clientConfig, err := clientcmd.NewClientConfigFromBytes(g.kubeconfig)
	if err != nil {
		return nil, err
	}

	g.restConfig, err = clientConfig.ClientConfig()
	if err != nil {
		return nil, err
	}
	return g.restConfig, nil
}

func (g *restClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	restConfig, err := g.ToRESTConfig()
	if err != nil {
		return nil, err
	}

	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(dc), nil
}

func (g *restClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

// ToRawKubeConfigLoader pins the namespace so Helm resolves releases in it.
func (g *restClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	config, err := clientcmd.Load(g.kubeconfig)
	if err != nil {
		clientConfig, _ := clientcmd.NewClientConfigFromBytes(g.kubeconfig)
		return clientConfig
	}
	return clientcmd.NewDefaultClientConfig(*config, &clientcmd.ConfigOverrides{
		Context: clientcmdapi.Context{Namespace: g.namespace},
	})
}
