package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/dkeye/coachline/internal/adapters/auth"
	"github.com/dkeye/coachline/internal/app/orch"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const principalKey = "principal"

// RequireStaff admits requests whose bearer token resolves to a staff principal.
func RequireStaff(v core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := v.Resolve(c.Request.Context(), auth.StripBearer(c.GetHeader("Authorization")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !p.IsStaff() {
			abortWithError(c, domain.Errorf(domain.KindForbidden, "staff only"))
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindConflict:     http.StatusConflict,
	domain.KindBadRequest:   http.StatusBadRequest,
	domain.KindInternal:     http.StatusInternalServerError,
}

func abortWithError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(statusByKind[kind], gin.H{"status": "error", "message": domain.PublicMessage(err)})
}

type handlers struct {
	orch *orch.Orchestrator
}

func (h *handlers) presence(c *gin.Context) {
	id := strings.TrimSpace(c.Param("userId"))
	if id == "" {
		abortWithError(c, domain.Errorf(domain.KindBadRequest, "userId is required"))
		return
	}
	snap, err := h.orch.Presence.Snapshot(c.Request.Context(), domain.UserID(id))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) onlineCount(c *gin.Context) {
	n, err := h.orch.Presence.CountOnline(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onlineUsers": n})
}

// rooms lists the rooms of this process. Per-connection addressing rooms are left out.
func (h *handlers) rooms(c *gin.Context) {
	all := h.orch.Rooms.List()
	out := make([]core.RoomInfo, 0, len(all))
	for _, r := range all {
		if strings.HasPrefix(string(r.Name), "conn:") {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}
