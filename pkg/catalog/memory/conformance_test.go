package memory_test

import (
	"context"
	"testing"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/catalog/catalogtest"
	"github.com/tai-kun/omnio-sub001/pkg/catalog/memory"
)

func TestMemoryCatalogConformance(t *testing.T) {
	catalogtest.RunConformanceSuite(t, func(t *testing.T) catalog.Catalog {
		c := memory.New()
		if err := c.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() failed: %v", err)
		}
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}
