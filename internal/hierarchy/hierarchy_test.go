package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

func s(v string) *string { return &v }

func groupOrg() models.OrganizationNode {
	return models.OrganizationNode{
		Name:           "acme",
		Level:          models.NodeLevelOrganization,
		Classification: models.OrgClassificationGroup,
	}
}

// acmeNodes builds the raw rows of a full 4-level tree:
//
//	acme
//	└── energy (business line)
//	    └── acme-holdings (subsidiary)
//	        ├── plant-north
//	        └── plant-south
func acmeNodes() []models.OrganizationNode {
	return []models.OrganizationNode{
		{Name: "energy", Level: models.NodeLevelBusinessLine, OrganizationName: "acme"},
		{Name: "acme-holdings", Level: models.NodeLevelSubsidiary, OrganizationName: "acme", BusinessLineName: s("energy")},
		{Name: "plant-north", Level: models.NodeLevelSite, OrganizationName: "acme", SubsidiaryName: s("acme-holdings")},
		{Name: "plant-south", Level: models.NodeLevelSite, OrganizationName: "acme", SubsidiaryName: s("acme-holdings")},
	}
}

func TestBuildResolvesFullTree(t *testing.T) {
	tree := Build(groupOrg(), acmeNodes())

	assert.Len(t, tree.BusinessLines, 1)
	assert.Len(t, tree.Subsidiaries, 1)
	assert.Len(t, tree.Sites, 2)
	assert.Empty(t, tree.Excluded)

	nodes := tree.Nodes()
	require.Len(t, nodes, 4)
	assert.Equal(t, "energy", nodes[0].Name)
	assert.Equal(t, "acme-holdings", nodes[1].Name)
	assert.Equal(t, "plant-north", nodes[2].Name)
	assert.Equal(t, "plant-south", nodes[3].Name)
}

func TestBuildExcludesUnresolvableNodes(t *testing.T) {
	nodes := append(acmeNodes(),
		models.OrganizationNode{
			Name: "orphan-site", Level: models.NodeLevelSite,
			OrganizationName: "acme", SubsidiaryName: s("no-such-subsidiary"),
		},
		models.OrganizationNode{
			Name: "stray-sub", Level: models.NodeLevelSubsidiary,
			OrganizationName: "acme", BusinessLineName: s("no-such-line"),
		},
	)
	tree := Build(groupOrg(), nodes)

	// the consistent part of the tree still resolves
	assert.Len(t, tree.Sites, 2)
	assert.Len(t, tree.Subsidiaries, 1)

	require.Len(t, tree.Excluded, 2)
	excluded := map[string]string{}
	for _, e := range tree.Excluded {
		excluded[e.NodeName] = e.Reason
	}
	assert.Contains(t, excluded, "orphan-site")
	assert.Contains(t, excluded, "stray-sub")
}

func TestBuildExcludesMismatchedBusinessLine(t *testing.T) {
	nodes := append(acmeNodes(),
		models.OrganizationNode{Name: "retail", Level: models.NodeLevelBusinessLine, OrganizationName: "acme"},
		models.OrganizationNode{
			Name: "confused-site", Level: models.NodeLevelSite, OrganizationName: "acme",
			SubsidiaryName:   s("acme-holdings"),
			BusinessLineName: s("retail"), // holdings belongs to energy
		},
	)
	tree := Build(groupOrg(), nodes)

	require.Len(t, tree.Excluded, 1)
	assert.Equal(t, "confused-site", tree.Excluded[0].NodeName)
	assert.NotContains(t, tree.Sites, "confused-site")
}

func TestAncestry(t *testing.T) {
	tree := Build(groupOrg(), acmeNodes())

	chain, err := tree.Ancestry("plant-north")
	require.NoError(t, err)
	require.Len(t, chain, 4)
	assert.Equal(t, "plant-north", chain[0].Name)
	assert.Equal(t, "acme-holdings", chain[1].Name)
	assert.Equal(t, "energy", chain[2].Name)
	assert.Equal(t, "acme", chain[3].Name)

	_, err = tree.Ancestry("no-such-site")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestAncestrySiteDirectlyUnderBusinessLine(t *testing.T) {
	nodes := []models.OrganizationNode{
		{Name: "energy", Level: models.NodeLevelBusinessLine, OrganizationName: "acme"},
		{Name: "depot", Level: models.NodeLevelSite, OrganizationName: "acme", BusinessLineName: s("energy")},
	}
	tree := Build(groupOrg(), nodes)

	chain, err := tree.Ancestry("depot")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "depot", chain[0].Name)
	assert.Equal(t, "energy", chain[1].Name)
	assert.Equal(t, "acme", chain[2].Name)
}

func TestSitesUnder(t *testing.T) {
	nodes := append(acmeNodes(),
		models.OrganizationNode{Name: "retail", Level: models.NodeLevelBusinessLine, OrganizationName: "acme"},
		models.OrganizationNode{Name: "shop-1", Level: models.NodeLevelSite, OrganizationName: "acme", BusinessLineName: s("retail")},
	)
	tree := Build(groupOrg(), nodes)

	assert.Equal(t, []string{"plant-north", "plant-south", "shop-1"},
		tree.SitesUnder(models.NodeLevelOrganization, "acme"))
	assert.Equal(t, []string{"plant-north", "plant-south"},
		tree.SitesUnder(models.NodeLevelSubsidiary, "acme-holdings"))
	// sites reach their business line through the subsidiary
	assert.Equal(t, []string{"plant-north", "plant-south"},
		tree.SitesUnder(models.NodeLevelBusinessLine, "energy"))
	assert.Equal(t, []string{"shop-1"},
		tree.SitesUnder(models.NodeLevelBusinessLine, "retail"))
	assert.Empty(t, tree.SitesUnder(models.NodeLevelBusinessLine, "no-such-line"))
}

func TestReportingScopes(t *testing.T) {
	tree := Build(groupOrg(), acmeNodes())
	assert.Equal(t, []string{"plant-north", "plant-south"}, tree.ReportingScopes())

	// a simple organization reports at its own scope
	simple := models.OrganizationNode{
		Name: "solo", Level: models.NodeLevelOrganization,
		Classification: models.OrgClassificationSimple,
	}
	assert.Equal(t, []string{"solo"}, Build(simple, nil).ReportingScopes())

	// structured classification but no sites yet still falls back to the org
	empty := Build(groupOrg(), nil)
	assert.Equal(t, []string{"acme"}, empty.ReportingScopes())
}

func TestRequiredSet(t *testing.T) {
	processes := map[string]models.Process{
		"ENV": {Code: "ENV", IndicatorCodes: []string{"GHG01", "WAT01"}},
		"SOC": {Code: "SOC", IndicatorCodes: []string{"HR01"}},
	}
	assignments := []models.ProcessAssignment{
		{ScopeName: "plant-north", ProcessCode: "ENV", IsActive: true},
		{ScopeName: "plant-north", ProcessCode: "SOC", IsActive: true},
		{ScopeName: "plant-south", ProcessCode: "ENV", IsActive: true},
		{ScopeName: "plant-south", ProcessCode: "SOC", IsActive: false}, // inactive contributes nothing
		{ScopeName: "plant-north", ProcessCode: "ENV", IsActive: true},  // duplicate assignment folds away
	}

	got := RequiredSet([]string{"plant-north", "plant-south"}, assignments, processes)

	want := []models.RequiredTriple{
		{Scope: "plant-north", ProcessCode: "ENV", IndicatorCode: "GHG01"},
		{Scope: "plant-north", ProcessCode: "ENV", IndicatorCode: "WAT01"},
		{Scope: "plant-north", ProcessCode: "SOC", IndicatorCode: "HR01"},
		{Scope: "plant-south", ProcessCode: "ENV", IndicatorCode: "GHG01"},
		{Scope: "plant-south", ProcessCode: "ENV", IndicatorCode: "WAT01"},
	}
	assert.Equal(t, want, got)
}
