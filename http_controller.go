package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type AuthControllerRoutes struct {
	Register   string
	Login      string
	AdminLogin string
	Logout     string
	Me         string
	Profile    string
	Password   string
	Users      string
	UserStatus string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auther       Authenticator
	Admin        AccountAdministrator
	HTTP         *RouteAuthenticator
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithAccountAdministrator(admin AccountAdministrator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Admin = admin
		return c
	}
}

func WithRouteAuthenticator(http *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = http
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:   "/auth/register",
			Login:      "/auth/login",
			AdminLogin: "/auth/admin/login",
			Logout:     "/auth/logout",
			Me:         "/auth/me",
			Profile:    "/auth/profile",
			Password:   "/auth/password",
			Users:      "/admin/users",
			UserStatus: "/admin/users/:id/status",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.HTTP.ErrorHandler
	}

	return c
}

// RegisterAuthRoutes mounts the auth and admin endpoints on app
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	protected := controller.HTTP.ProtectedRoute()

	app.Post(controller.Routes.Register, controller.RegisterPost).SetName("auth.register")
	app.Post(controller.Routes.Login, controller.LoginPost).SetName("auth.login")
	app.Post(controller.Routes.AdminLogin, controller.AdminLoginPost).SetName("auth.admin.login")
	app.Post(controller.Routes.Logout, controller.LogOut).SetName("auth.logout")

	app.Get(controller.Routes.Me, controller.MeGet, protected).SetName("auth.me")
	app.Put(controller.Routes.Profile, controller.ProfilePut, protected).SetName("auth.profile")
	app.Put(controller.Routes.Password, controller.PasswordPut, protected).SetName("auth.password")

	if controller.Admin != nil {
		admin := controller.HTTP.AdminRoute()
		app.Get(controller.Routes.Users, controller.UsersGet, admin).SetName("admin.users.list")
		app.Post(controller.Routes.Users, controller.UsersPost, admin).SetName("admin.users.create")
		app.Patch(controller.Routes.UserStatus, controller.UserStatusPatch, admin).SetName("admin.users.status")
	}

	return controller
}

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules, password strength is left to the service
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r RegisterRequest) masked() RegisterRequest {
	r.Password = maskSecret(r.Password)
	return r
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r LoginRequest) masked() LoginRequest {
	r.Password = maskSecret(r.Password)
	return r
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// UserStatusRequest payload
type UserStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

// Validate will run validation rules
func (r UserStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

func (a *AuthController) RegisterPost(c router.Context) error {
	payload := new(RegisterRequest)
	if err := c.Bind(payload); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if a.Debug {
		a.Logger.Debug("auth register payload", "payload", print.MaybePrettyJSON(payload.masked()))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	res, err := a.Auther.Register(c.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusCreated, authResponse(res))
}

func (a *AuthController) LoginPost(c router.Context) error {
	return a.login(c, a.Auther.Login)
}

func (a *AuthController) AdminLoginPost(c router.Context) error {
	return a.login(c, a.Auther.AdminLogin)
}

func (a *AuthController) login(c router.Context, fn func(ctx context.Context, email, password string) (*AuthResult, error)) error {
	payload := new(LoginRequest)
	if err := c.Bind(payload); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if a.Debug {
		a.Logger.Debug("auth login payload", "payload", print.MaybePrettyJSON(payload.masked()))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	res, err := fn(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.HTTP.SetCookieToken(c, res.Token, res.ExpiresAt)

	return c.JSON(router.StatusOK, authResponse(res))
}

func (a *AuthController) LogOut(c router.Context) error {
	if err := a.Auther.Logout(c.Context(), a.HTTP.RequestToken(c)); err != nil {
		return a.ErrorHandler(c, err)
	}

	a.HTTP.Logout(c)
	return c.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "logged out",
	})
}

func (a *AuthController) MeGet(c router.Context) error {
	account, ok := GetRouterAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrTokenInvalid)
	}

	return c.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    account.Profile(),
	})
}

func (a *AuthController) ProfilePut(c router.Context) error {
	account, ok := GetRouterAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrTokenInvalid)
	}

	update := ProfileUpdate{}
	if err := c.Bind(&update); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if a.Debug {
		a.Logger.Debug("auth profile payload", "payload", print.MaybePrettyJSON(update))
	}

	updated, err := a.Auther.UpdateProfile(c.Context(), account.ID, update)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    updated.Profile(),
	})
}

func (a *AuthController) PasswordPut(c router.Context) error {
	account, ok := GetRouterAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrTokenInvalid)
	}

	payload := new(ChangePasswordRequest)
	if err := c.Bind(payload); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	if err := a.Auther.ChangePassword(c.Context(), account.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "password updated",
	})
}

func (a *AuthController) UsersGet(c router.Context) error {
	var role UserRole
	if raw := strings.TrimSpace(c.Query("role", "")); raw != "" {
		parsed, ok := ParseRole(raw)
		if !ok {
			return a.ErrorHandler(c, wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{"role": "unknown role"}))
		}
		role = parsed
	}

	opts := ListOptions{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", defaultListLimit),
		Role:   role,
		Search: c.Query("search", ""),
	}

	page, err := a.Admin.ListAccounts(c.Context(), opts)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, struct {
		Success bool `json:"success"`
		AccountPage
	}{
		Success:     true,
		AccountPage: page,
	})
}

func (a *AuthController) UsersPost(c router.Context) error {
	payload := new(RegisterRequest)
	if err := c.Bind(payload); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if a.Debug {
		a.Logger.Debug("admin provision payload", "payload", print.MaybePrettyJSON(payload.masked()))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	actor, err := a.actor(c)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	account, err := a.Admin.ProvisionAdmin(c.Context(), actor, payload.Name, payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"user":    account.Public(),
	})
}

func (a *AuthController) UserStatusPatch(c router.Context) error {
	id, err := uuid.Parse(c.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err).WithMetadata(map[string]any{"id": "invalid account id"}))
	}

	payload := new(UserStatusRequest)
	if err := c.Bind(payload); err != nil {
		return a.ErrorHandler(c, wrapError(ErrValidationFailed, err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	actor, err := a.actor(c)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	account, err := a.Admin.SetAccountActive(c.Context(), actor, id, *payload.IsActive)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    account.Profile(),
	})
}

func (a *AuthController) actor(c router.Context) (ActorRef, error) {
	claims, ok := GetRouterClaims(c, DefaultContextKey)
	if !ok {
		return ActorRef{}, ErrTokenInvalid
	}
	return ActorFromClaims(claims), nil
}

func authResponse(res *AuthResult) map[string]any {
	body := map[string]any{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
	}
	if len(res.Permissions) > 0 {
		body["permissions"] = res.Permissions
	}
	return body
}

// queryInt reads a numeric query value, def is used when missing or malformed
func queryInt(c router.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name, ""))
	if err != nil {
		return def
	}
	return n
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
