package middleware

import (
	"context"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	"github.com/noah-isme/thesis-workflow-api/pkg/config"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/logger"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

// RouteClass names the capability a protected route group requires.
type RouteClass string

const (
	ClassAuthenticated  RouteClass = "authenticated"
	ClassParticipant    RouteClass = "participant"
	ClassTeacher        RouteClass = "teacher"
	ClassDepartmentHead RouteClass = "department-head"
	ClassReviewer       RouteClass = "reviewer"
	ClassCommission     RouteClass = "commission"
	ClassAdmin          RouteClass = "admin"
)

// AccessCodeHeader carries a temporary access code for API clients.
const AccessCodeHeader = "X-Access-Code"

// Decision is the terminal outcome of an access check.
type Decision string

const (
	DecisionAllow        Decision = "allow"
	DecisionLogin        Decision = "deny_login"
	DecisionUnauthorized Decision = "deny_unauthorized"
	DecisionError        Decision = "error"
)

type liveDepartmentHeadChecker interface {
	IsDepartmentHeadLive(ctx context.Context, email string) (bool, error)
}

// AccessGuard turns session state into allow or deny decisions per route class.
type AccessGuard struct {
	heads   liveDepartmentHeadChecker
	metrics *service.MetricsService
	logger  *zap.Logger
	cfg     config.AccessConfig
}

// NewAccessGuard constructs the guard.
func NewAccessGuard(heads liveDepartmentHeadChecker, metrics *service.MetricsService, log *zap.Logger, cfg config.AccessConfig) *AccessGuard {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = "/login"
	}
	if cfg.UnauthorizedURL == "" {
		cfg.UnauthorizedURL = "/unauthorized"
	}
	if cfg.ErrorURL == "" {
		cfg.ErrorURL = "/error"
	}
	return &AccessGuard{heads: heads, metrics: metrics, logger: log, cfg: cfg}
}

// RequireAccess protects a route group. Commission and participant routes
// try a presented access code before the standing session.
func (g *AccessGuard) RequireAccess(class RouteClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, decision, err := g.decide(c, class)
		switch decision {
		case DecisionAllow:
			g.metrics.RecordAccessDecision(string(class), string(decision))
			c.Set(ContextAccessKey, access)
			c.Set(logger.PrincipalKey, viewerOf(access).AuditName())
			c.Next()
		case DecisionLogin:
			g.deny(c, class, decision, appErrors.ErrAuthenticationRequired, g.cfg.LoginURL)
		case DecisionUnauthorized:
			g.deny(c, class, decision, appErrors.Clone(appErrors.ErrForbidden, "access to this area is not permitted"), g.cfg.UnauthorizedURL)
		default:
			appErr := appErrors.FromError(err)
			logger.ForRequest(g.logger, c).Error("access check failed", zap.String("class", string(class)), zap.Error(err))
			target := g.cfg.ErrorURL + "?message=" + url.QueryEscape(appErr.Message)
			g.deny(c, class, DecisionError, appErr, target)
		}
	}
}

func (g *AccessGuard) decide(c *gin.Context, class RouteClass) (service.Access, Decision, error) {
	ctx := c.Request.Context()
	sess := SessionFromContext(c)
	if sess == nil {
		return service.Access{}, DecisionError, appErrors.Clone(appErrors.ErrInternal, "session middleware is not installed")
	}

	if class == ClassCommission || class == ClassParticipant {
		if code := accessCode(c); code != "" {
			ok, err := sess.SetTemporaryAccess(ctx, code)
			if err != nil {
				return service.Access{}, DecisionError, err
			}
			if ok {
				access, err := sess.Access(ctx)
				if err != nil {
					return service.Access{}, DecisionError, err
				}
				return access, DecisionAllow, nil
			}
		}
	}

	if err := sess.InitFromExternalSession(ctx); err != nil {
		return service.Access{}, DecisionError, err
	}
	access, err := sess.Access(ctx)
	if err != nil {
		return service.Access{}, DecisionError, err
	}
	if !access.HasIdentity() {
		return access, DecisionLogin, nil
	}

	switch class {
	case ClassAuthenticated, ClassParticipant:
		return access, DecisionAllow, nil
	case ClassTeacher:
		if access.HasTeacherAccess() || access.HasDepartmentHeadAccess() {
			return access, DecisionAllow, nil
		}
	case ClassDepartmentHead:
		if access.HasDepartmentHeadAccess() {
			return access, DecisionAllow, nil
		}
		if g.liveDepartmentHead(c, access) {
			return withDepartmentHead(access), DecisionAllow, nil
		}
	case ClassReviewer:
		if access.HasReviewerAccess() {
			return access, DecisionAllow, nil
		}
	case ClassCommission:
		if access.HasCommissionAccess() {
			return access, DecisionAllow, nil
		}
	case ClassAdmin:
		if access.HasAdminAccess() {
			return access, DecisionAllow, nil
		}
	}
	return access, DecisionUnauthorized, nil
}

// liveDepartmentHead asks the directory directly, since the cached flag may
// predate a new designation. A failing directory counts as "no".
func (g *AccessGuard) liveDepartmentHead(c *gin.Context, access service.Access) bool {
	if g.heads == nil || access.Principal == nil {
		return false
	}
	email := access.Principal.Identity.NormalizedEmail()
	isHead, err := g.heads.IsDepartmentHeadLive(c.Request.Context(), email)
	if err != nil {
		logger.ForRequest(g.logger, c).Warn("live department head check failed", zap.String("email", email), zap.Error(err))
		return false
	}
	return isHead
}

func (g *AccessGuard) deny(c *gin.Context, class RouteClass, decision Decision, err *appErrors.Error, target string) {
	g.metrics.RecordAccessDecision(string(class), string(decision))
	response.Deny(c, err, target)
}

// ViewerFromContext returns the caller of an allowed request.
func ViewerFromContext(c *gin.Context) (models.Viewer, bool) {
	access, ok := AccessFromContext(c)
	if !ok {
		return models.Viewer{}, false
	}
	return viewerOf(access), true
}

func viewerOf(access service.Access) models.Viewer {
	if access.Principal != nil {
		return models.ViewerFromPrincipal(access.Principal)
	}
	return models.ViewerFromGrant(access.Grant)
}

// withDepartmentHead returns a copy of access with the department head flags
// raised. The session itself is left untouched.
func withDepartmentHead(access service.Access) service.Access {
	principal := *access.Principal
	principal.Capabilities.IsDepartmentHead = true
	principal.Capabilities.IsTeacher = true
	access.Principal = &principal
	return access
}

func accessCode(c *gin.Context) string {
	if code := strings.TrimSpace(c.Query("code")); code != "" {
		return code
	}
	return strings.TrimSpace(c.GetHeader(AccessCodeHeader))
}
