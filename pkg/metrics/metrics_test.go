package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry should not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestNamespace(t *testing.T) {
	if Namespace != "usaspending" {
		t.Errorf("Namespace = %q, want usaspending", Namespace)
	}
}
