package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// GetHierarchy returns every resolved node beneath an organization.
// Nodes with inconsistent ancestry were already excluded (and logged)
// by the resolver.
func (h *Handler) GetHierarchy(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tree, err := h.db.ResolveTree(ctx, orgName)
	if err != nil {
		respondOutcome(c, "Failed to resolve hierarchy", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Hierarchy retrieved successfully",
		Data: gin.H{
			"organization": tree.Organization,
			"nodes":        tree.Nodes(),
		},
	})
}

// GetAncestry returns the ordered chain from a site up to its organization
func (h *Handler) GetAncestry(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	siteName := c.Param("site")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tree, err := h.db.ResolveTree(ctx, orgName)
	if err != nil {
		respondOutcome(c, "Failed to resolve hierarchy", err)
		return
	}

	chain, err := tree.Ancestry(siteName)
	if err != nil {
		respondOutcome(c, "Site not found", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Ancestry retrieved successfully",
		Data:    chain,
	})
}

// GetRequired returns the (scope, process, indicator) triples the
// organization must report. Assignments carry no validity period, so the
// required set is the same for every period.
func (h *Handler) GetRequired(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	triples, err := h.db.RequiredTriples(ctx, orgName)
	if err != nil {
		respondOutcome(c, "Failed to compute required set", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Required set retrieved successfully",
		Data:    triples,
	})
}
