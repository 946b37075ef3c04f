package domain

import (
	"testing"

	"ritual/testutil"
)

func TestDomainHasNoDriverDependencies(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.DriverImportForbidden, "storage and transport belong to infra")
}
