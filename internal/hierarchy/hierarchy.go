package hierarchy

import (
	"sort"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// Exclusion records a node dropped from a tree because its declared
// ancestry does not resolve inside the organization.
type Exclusion struct {
	NodeName string
	Reason   string
}

// Tree is the resolved structure of one organization. Nodes whose
// ancestry failed to resolve are listed in Excluded and take no part
// in ancestry lookups or aggregation.
type Tree struct {
	Organization  models.OrganizationNode
	BusinessLines map[string]models.OrganizationNode
	Subsidiaries  map[string]models.OrganizationNode
	Sites         map[string]models.OrganizationNode
	Excluded      []Exclusion
}

// Build assembles the tree for an organization from its raw node rows.
// A structurally inconsistent node is excluded rather than aborting the
// whole resolution.
func Build(org models.OrganizationNode, nodes []models.OrganizationNode) *Tree {
	t := &Tree{
		Organization:  org,
		BusinessLines: make(map[string]models.OrganizationNode),
		Subsidiaries:  make(map[string]models.OrganizationNode),
		Sites:         make(map[string]models.OrganizationNode),
	}

	for _, n := range nodes {
		if n.Level == models.NodeLevelBusinessLine {
			t.BusinessLines[n.Name] = n
		}
	}

	for _, n := range nodes {
		if n.Level != models.NodeLevelSubsidiary {
			continue
		}
		if n.BusinessLineName != nil {
			if _, ok := t.BusinessLines[*n.BusinessLineName]; !ok {
				t.Excluded = append(t.Excluded, Exclusion{
					NodeName: n.Name,
					Reason:   "subsidiary references unknown business line " + *n.BusinessLineName,
				})
				continue
			}
		}
		t.Subsidiaries[n.Name] = n
	}

	for _, n := range nodes {
		if n.Level != models.NodeLevelSite {
			continue
		}
		if reason, ok := t.checkSiteAncestry(n); !ok {
			t.Excluded = append(t.Excluded, Exclusion{NodeName: n.Name, Reason: reason})
			continue
		}
		t.Sites[n.Name] = n
	}

	return t
}

// checkSiteAncestry verifies the site's parent references resolve and agree.
func (t *Tree) checkSiteAncestry(site models.OrganizationNode) (string, bool) {
	if site.SubsidiaryName != nil {
		sub, ok := t.Subsidiaries[*site.SubsidiaryName]
		if !ok {
			return "site references unknown subsidiary " + *site.SubsidiaryName, false
		}
		if site.BusinessLineName != nil {
			if sub.BusinessLineName == nil || *sub.BusinessLineName != *site.BusinessLineName {
				return "site business line does not match its subsidiary's", false
			}
		}
		return "", true
	}
	if site.BusinessLineName != nil {
		if _, ok := t.BusinessLines[*site.BusinessLineName]; !ok {
			return "site references unknown business line " + *site.BusinessLineName, false
		}
	}
	return "", true
}

// Nodes returns every resolved node beneath the organization, business
// lines first, then subsidiaries, then sites, each level sorted by name.
func (t *Tree) Nodes() []models.OrganizationNode {
	out := make([]models.OrganizationNode, 0, len(t.BusinessLines)+len(t.Subsidiaries)+len(t.Sites))
	out = append(out, sortedValues(t.BusinessLines)...)
	out = append(out, sortedValues(t.Subsidiaries)...)
	out = append(out, sortedValues(t.Sites)...)
	return out
}

func sortedValues(m map[string]models.OrganizationNode) []models.OrganizationNode {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]models.OrganizationNode, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}

// Ancestry returns the ordered chain from a site up to the organization.
func (t *Tree) Ancestry(siteName string) ([]models.OrganizationNode, error) {
	site, ok := t.Sites[siteName]
	if !ok {
		return nil, models.WrapKind(models.ErrNotFound, "site %s", siteName)
	}

	chain := []models.OrganizationNode{site}
	blName := site.BusinessLineName
	if site.SubsidiaryName != nil {
		sub := t.Subsidiaries[*site.SubsidiaryName]
		chain = append(chain, sub)
		if blName == nil {
			blName = sub.BusinessLineName
		}
	}
	if blName != nil {
		if bl, ok := t.BusinessLines[*blName]; ok {
			chain = append(chain, bl)
		}
	}
	chain = append(chain, t.Organization)
	return chain, nil
}

// businessLineOf resolves a site's effective business line, directly or
// through its subsidiary.
func (t *Tree) businessLineOf(site models.OrganizationNode) *string {
	if site.BusinessLineName != nil {
		return site.BusinessLineName
	}
	if site.SubsidiaryName != nil {
		if sub, ok := t.Subsidiaries[*site.SubsidiaryName]; ok {
			return sub.BusinessLineName
		}
	}
	return nil
}

// SitesUnder returns the names of the sites aggregated at a consolidation
// node, sorted. For the organization node that is every resolved site.
func (t *Tree) SitesUnder(level models.NodeLevel, nodeName string) []string {
	var names []string
	for name, site := range t.Sites {
		switch level {
		case models.NodeLevelOrganization:
			names = append(names, name)
		case models.NodeLevelBusinessLine:
			if bl := t.businessLineOf(site); bl != nil && *bl == nodeName {
				names = append(names, name)
			}
		case models.NodeLevelSubsidiary:
			if site.SubsidiaryName != nil && *site.SubsidiaryName == nodeName {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// ReportingScopes returns the units expected to enter values: each site,
// or the organization itself when it carries no sub-structure.
func (t *Tree) ReportingScopes() []string {
	if !t.Organization.Classification.HasSubStructure() || len(t.Sites) == 0 {
		return []string{t.Organization.Name}
	}
	names := make([]string, 0, len(t.Sites))
	for name := range t.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredSet computes the (scope, process, indicator) triples the
// organization must report: for every reporting scope, the union of the
// indicator codes owned by each active process assigned to it. This set
// defines completeness; the value store only knows rows that exist.
func RequiredSet(scopes []string, assignments []models.ProcessAssignment, processes map[string]models.Process) []models.RequiredTriple {
	byScope := make(map[string][]string)
	for _, a := range assignments {
		if !a.IsActive || a.ScopeName == "" {
			continue
		}
		byScope[a.ScopeName] = append(byScope[a.ScopeName], a.ProcessCode)
	}

	var out []models.RequiredTriple
	for _, scope := range scopes {
		seen := make(map[string]bool)
		for _, code := range byScope[scope] {
			proc, ok := processes[code]
			if !ok {
				continue
			}
			for _, ind := range proc.IndicatorCodes {
				key := code + "\x00" + ind
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, models.RequiredTriple{
					Scope:         scope,
					ProcessCode:   code,
					IndicatorCode: ind,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		if out[i].ProcessCode != out[j].ProcessCode {
			return out[i].ProcessCode < out[j].ProcessCode
		}
		return out[i].IndicatorCode < out[j].IndicatorCode
	})
	return out
}
