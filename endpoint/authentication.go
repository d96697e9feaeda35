package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danursasmita/bengkel-ops/config"
	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Email            string `json:"email" binding:"required,email" example:"user@example.com"`
	Password         string `json:"password" binding:"required" example:"password123"`
	VerificationCode string `json:"verification_code" example:"483920"`
	PublicIP         string `json:"public_ip" example:"1.2.3.4"`
}

type LoginResponse struct {
	RequiresVerification bool   `json:"requires_verification"`
	Token                string `json:"token,omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Role                 string `json:"role,omitempty" example:"User"`
	UserID               uint   `json:"user_id,omitempty" example:"1"`
}

// Login godoc
// @Summary      User login with address verification
// @Description  Authenticate with email and password; logins from unrecognized addresses must confirm a one-time code sent by email
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials, optional verification code and public address"
// @Success      200 {object} util.APIResponse{data=LoginResponse} "Login allowed or verification required"
// @Failure      400 {object} util.APIResponse "Invalid request payload or invalid/expired code"
// @Failure      401 {object} util.APIResponse "Invalid email or password"
// @Failure      403 {object} util.APIResponse "Suspended account or banned address"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /login [post]
func Login(c *gin.Context) {
	var req LoginRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	if req.Password == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request payload",
			Err: fmt.Errorf("password cannot be empty"),
		})
		return
	}

	// Get client info for logging
	ci := clientInfo{IP: c.ClientIP(), Agent: c.Request.UserAgent()}
	ctx := loginContext{C: c, DB: db, Email: util.NormalizeEmail(req.Email), CI: ci}

	// Load user
	user, ok := loadUserForLogin(ctx)
	if !ok {
		return
	}

	// Check lock
	if !ensureAccountNotLocked(ctx, &user) {
		return
	}

	// Verify password
	if !verifyPasswordOrRespond(ctx, &user, req.Password) {
		return
	}

	// Check account status
	if !ensureAccountActive(ctx, &user) {
		return
	}

	// Credentials accepted; clear lockout counters and upgrade legacy
	// hashes before the trust decision.
	if err := resetFailedAttempts(db, &user); err != nil {
		util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventSuspiciousActivity, UserID: fmt.Sprintf("%d", user.ID), Email: user.Email, IP: ci.IP, Message: fmt.Sprintf("Failed to reset failed attempts: %v", err)})
	}
	_ = upgradeLegacyPasswordIfNeeded(db, &user, req.Password, ci)

	// Resolve the caller's public address; without one the flow fails
	// safe to "verification required" and writes nothing.
	addr, ok := resolveLoginAddress(ctx, req.PublicIP)
	if !ok {
		return
	}

	evaluateAddressTrust(ctx, &user, addr, req.VerificationCode)
}

// helper types and functions to simplify Login flow
type loginContext struct {
	C     *gin.Context
	DB    *gorm.DB
	Email string
	CI    clientInfo
}

func loadUserForLogin(ctx loginContext) (model.User, bool) {
	user, err := loadUserByEmail(ctx.DB, ctx.Email)
	if err == gorm.ErrRecordNotFound {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "user not found")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{Msg: "Invalid email or password", Err: fmt.Errorf("invalid email or password")})
		return model.User{}, false
	}
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "database error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Database error", Err: err})
		return model.User{}, false
	}
	return user, true
}

func ensureAccountNotLocked(ctx loginContext, user *model.User) bool {
	if locked, expiry := isAccountLocked(user); locked {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "account locked")
		util.CallUserError(ctx.C, util.APIErrorParams{Msg: fmt.Sprintf("Account is locked until %s due to multiple failed login attempts", expiry.Format(time.RFC3339)), Err: fmt.Errorf("account locked")})
		return false
	}
	return true
}

func verifyPasswordOrRespond(ctx loginContext, user *model.User, plain string) bool {
	match, err := util.VerifyPassword(plain, user.Password, user.PasswordSalt)
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "password verification error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Password verification failed", Err: err})
		return false
	}
	if !match {
		incrementFailedAttempts(ctx.DB, user, ctx.CI)
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "invalid password")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{Msg: "Invalid email or password", Err: fmt.Errorf("invalid email or password")})
		return false
	}
	return true
}

// ensureAccountActive gates on the account status once credentials have
// matched. A suspended account is told so; an inactive one gets the same
// answer as a bad password so its existence is not revealed.
func ensureAccountActive(ctx loginContext, user *model.User) bool {
	switch user.Status {
	case model.UserStatusSuspended:
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "account suspended")
		util.CallUserForbidden(ctx.C, util.APIErrorParams{Msg: "Account is suspended", Err: fmt.Errorf("account suspended")})
		return false
	case model.UserStatusInactive:
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "account inactive")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{Msg: "Invalid email or password", Err: fmt.Errorf("invalid email or password")})
		return false
	}
	return true
}

// resolveLoginAddress normalizes the caller's public address. A malformed
// hint is a user error; an unavailable address answers with the fail-safe
// "verification required" so the client resupplies an address instead of
// being silently allowed through.
func resolveLoginAddress(ctx loginContext, hint string) (string, bool) {
	addr, err := util.ResolveClientIP(hint, ctx.CI.IP)
	if err == nil {
		return addr, true
	}
	if errors.Is(err, util.ErrIPUnavailable) {
		util.CallSuccessOK(ctx.C, util.APISuccessParams{
			Msg:  "Could not determine your public address; please retry and include your public IP address",
			Data: LoginResponse{RequiresVerification: true},
		})
		return "", false
	}
	util.CallUserError(ctx.C, util.APIErrorParams{Msg: "Invalid public IP address", Err: err})
	return "", false
}

// evaluateAddressTrust runs the per-(account, address) state machine once
// credentials and status checks have passed.
func evaluateAddressTrust(ctx loginContext, user *model.User, addr, submittedCode string) {
	rec, err := loadTrustedIP(ctx.DB, user.ID, addr)
	if err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to load address trust record", Err: err})
		return
	}

	switch trustStateOf(rec) {
	case trustBanned:
		// Banned dominates everything, including a correct code.
		util.LogBannedIPRejected(user.ID, user.Email, addr)
		util.CallUserForbidden(ctx.C, util.APIErrorParams{Msg: "Login from this address is not allowed", Err: fmt.Errorf("address is banned")})

	case trustApproved:
		if err := touchTrustedIP(ctx.DB, rec, ctx.CI.Agent); err != nil {
			util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to refresh address trust record", Err: err})
			return
		}
		finalizeLogin(ctx, user)

	default: // trustUnknown, trustPending
		if submittedCode != "" {
			verifyChallengeCode(ctx, user, addr, submittedCode)
			return
		}
		issueChallenge(ctx, user, addr)
	}
}

// verifyChallengeCode consumes a submitted code; success flips the pair to
// approved and lets the login proceed.
func verifyChallengeCode(ctx loginContext, user *model.User, addr, code string) {
	ok, err := consumeVerificationCode(ctx.DB, user.ID, addr, code)
	if err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to verify code", Err: err})
		return
	}
	if !ok {
		util.LogVerificationResult(user.ID, user.Email, addr, false)
		util.CallUserError(ctx.C, util.APIErrorParams{Msg: "Invalid or expired verification code", Err: fmt.Errorf("invalid or expired verification code")})
		return
	}

	approved := true
	loc := util.LookupIP(addr)
	if _, err := upsertTrustedIP(ctx.DB, user.ID, addr, trustPatch{Approved: &approved, Location: &loc, UserAgent: ctx.CI.Agent}); err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to update address trust record", Err: err})
		return
	}

	util.LogVerificationResult(user.ID, user.Email, addr, true)
	finalizeLogin(ctx, user)
}

// issueChallenge writes the pending trust record and a fresh code before
// attempting the email send, so a transient mail failure still leaves a
// retryable code behind. The mail failure itself is surfaced hard: a code
// the user cannot receive is useless.
func issueChallenge(ctx loginContext, user *model.User, addr string) {
	loc := util.LookupIP(addr)

	if _, err := upsertTrustedIP(ctx.DB, user.ID, addr, trustPatch{Location: &loc, UserAgent: ctx.CI.Agent}); err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to record address trust state", Err: err})
		return
	}

	code, err := issueVerificationCode(ctx.DB, user.ID, addr)
	if err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to issue verification code", Err: err})
		return
	}

	if verificationMailer == nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Verification mail transport is not configured", Err: fmt.Errorf("mail transport not configured")})
		return
	}
	if err := verificationMailer.SendVerificationCode(user.Email, code, addr, loc); err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to send verification email", Err: err})
		return
	}

	util.LogChallengeIssued(user.ID, user.Email, addr, ctx.CI.Agent)
	util.CallSuccessOK(ctx.C, util.APISuccessParams{
		Msg:  "This address is not recognized; a verification code has been sent to your email",
		Data: LoginResponse{RequiresVerification: true},
	})
}

func fetchRoleOrRespond(ctx loginContext, roleID uint32) (model.Role, bool) {
	role, err := fetchRole(ctx.DB, roleID)
	if err == gorm.ErrRecordNotFound {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "role not found")
		util.CallUserError(ctx.C, util.APIErrorParams{Msg: "Role not found", Err: fmt.Errorf("role not found")})
		return model.Role{}, false
	}
	if err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Database error", Err: err})
		return model.Role{}, false
	}
	return role, true
}

// finalizeLogin runs once the trust decision allows the login: issues the
// session token, records the session, and answers the fast path.
func finalizeLogin(ctx loginContext, user *model.User) {
	role, ok := fetchRoleOrRespond(ctx, user.RoleID)
	if !ok {
		return
	}

	tokenString, err := createJWTToken(*user)
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "token generation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Could not generate token", Err: err})
		return
	}

	sessionInfo := SessionInfo{UserID: user.ID, Token: tokenString, Client: ctx.CI, Expires: time.Now().Add(time.Hour * 1)}
	session, err := recordSession(ctx.DB, sessionInfo)
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "session creation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to record session", Err: err})
		return
	}

	// Store session in Redis (best-effort)
	if rdb := config.GetRedisClient(); rdb != nil {
		exp := time.Until(session.ExpiresAt)
		val := fmt.Sprintf("%d:%s", session.UserID, role.Name)
		_ = rdb.Set(context.Background(), fmt.Sprintf("session:%s", tokenString), val, exp).Err()
	}

	util.LogLoginSuccess(user.ID, user.Email, ctx.CI.IP, ctx.CI.Agent)
	util.CallSuccessOK(ctx.C, util.APISuccessParams{Msg: "Login successful", Data: LoginResponse{
		RequiresVerification: false,
		Token:                tokenString,
		Role:                 role.Name,
		UserID:               user.ID,
	}})
}

func loadUserByEmail(db *gorm.DB, email string) (model.User, error) {
	var user model.User
	err := db.Model(&user).Where("email = ?", util.NormalizeEmail(email)).First(&user).Error
	return user, err
}

func isAccountLocked(user *model.User) (bool, time.Time) {
	if user.LockedUntil != nil && *user.LockedUntil > time.Now().Unix() {
		return true, time.Unix(*user.LockedUntil, 0)
	}
	return false, time.Time{}
}

func incrementFailedAttempts(db *gorm.DB, user *model.User, ci clientInfo) {
	user.FailedAttempts++
	if user.FailedAttempts >= 5 {
		lockUntil := time.Now().Add(15 * time.Minute).Unix()
		user.LockedUntil = &lockUntil
		util.LogAccountLocked(user.ID, user.Email, ci.IP, "too many failed login attempts")
	}
	if err := db.Save(user).Error; err != nil {
		util.LogLoginFailure(user.Email, ci.IP, ci.Agent, "failed to update failed attempts")
	}
}

func resetFailedAttempts(db *gorm.DB, user *model.User) error {
	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.FailedAttempts = 0
		user.LockedUntil = nil
		return db.Save(user).Error
	}
	return nil
}

func upgradeLegacyPasswordIfNeeded(db *gorm.DB, user *model.User, plain string, ci clientInfo) error {
	if !util.IsLegacyPasswordHash(user.Password) {
		return nil
	}
	salt, err := util.GenerateSalt()
	if err != nil {
		return err
	}
	hashed, herr := util.HashPasswordArgon2(plain, salt)
	if herr != nil {
		return herr
	}
	user.Password = hashed
	user.PasswordSalt = salt
	if err := db.Save(user).Error; err != nil {
		util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventSuspiciousActivity, UserID: fmt.Sprintf("%d", user.ID), Email: user.Email, IP: ci.IP, Message: fmt.Sprintf("Failed to upgrade password hash: %v", err)})
		return err
	}
	util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventPasswordChanged, UserID: fmt.Sprintf("%d", user.ID), Email: user.Email, IP: ci.IP, Message: "Upgraded password hash to Argon2"})
	return nil
}

func fetchRole(db *gorm.DB, roleID uint32) (model.Role, error) {
	var role model.Role
	err := db.Model(&role).Where("id = ?", roleID).First(&role).Error
	return role, err
}

func createJWTToken(user model.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": user.Email, "exp": time.Now().Add(time.Hour * 1).Unix(), "role": user.RoleID})
	return token.SignedString(util.GetJWTSecretByte())
}

// SessionInfo groups parameters for creating a session to avoid long argument lists.
type SessionInfo struct {
	UserID  uint
	Token   string
	Client  clientInfo
	Expires time.Time
}

func recordSession(db *gorm.DB, info SessionInfo) (model.Session, error) {
	session := model.Session{UserID: info.UserID, SessionToken: info.Token, ExpiresAt: info.Expires, ClientIP: info.Client.IP, Browser: info.Client.Agent}
	err := db.Create(&session).Error
	return session, err
}

// Logout godoc
// @Summary      User logout
// @Description  Invalidate the user session token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Logout successful"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      400 {object} util.APIResponse "Session not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /logout [delete]
func Logout(c *gin.Context) {
	// Extract the session-token from the request header
	sessionToken := c.GetHeader("session-token")
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Session token not provided",
			Err: fmt.Errorf("session token not provided"),
		})
		c.Abort()
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	// Find the session record in the database based on sessionToken
	var session model.Session
	if err := db.Where("session_token = ?", sessionToken).First(&session).Error; err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Session not found",
			Err: err,
		})
		return
	}

	// Get user info for logging
	var user model.User
	if err := db.First(&user, session.UserID).Error; err == nil {
		util.LogLogout(user.ID, user.Email, c.ClientIP(), c.Request.UserAgent())
	}

	// Delete the session record from the database
	if err := db.Where("session_token = ?", sessionToken).Delete(&session).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Failed to delete session",
			Err: err,
		})
		return
	}

	// Also delete session from Redis if available
	if rdb := config.GetRedisClient(); rdb != nil {
		_ = rdb.Del(context.Background(), fmt.Sprintf("session:%s", sessionToken)).Err()
	}

	// Respond with a success message
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Logout successful",
	})
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required" example:"John Doe"`
	Email    string `json:"email" binding:"required,email" example:"john@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// Signup godoc
// @Summary      User signup
// @Description  Register a new user account
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup details"
// @Success      200 {object} util.APIResponse{data=string} "Signup successful"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /signup [post]
func Signup(c *gin.Context) {
	var req SignupRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	email := util.NormalizeEmail(req.Email)
	if !ensureEmailAvailable(c, db, email) {
		return
	}

	hashedPassword, salt, ok := hashPasswordForSignup(c, req.Password)
	if !ok {
		return
	}

	role, ok := fetchRoleByNameOrRespond(c, db, model.RoleUser)
	if !ok {
		return
	}

	user := model.User{
		Name:         req.Name,
		Email:        email,
		Password:     hashedPassword,
		PasswordSalt: salt,
		Status:       model.UserStatusActive,
		RoleID:       role.ID,
	}
	if !createUserOrRespond(c, db, &user) {
		return
	}

	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventSignupSuccess,
		UserID:    fmt.Sprintf("%d", user.ID),
		Email:     user.Email,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Message:   "New account registered",
	})

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Signup successful", Data: user.ID})
}

func ensureEmailAvailable(c *gin.Context, db *gorm.DB, email string) bool {
	var existingUser model.User
	err := db.First(&existingUser, "email = ?", email).Error
	if err != gorm.ErrRecordNotFound {
		if err == nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "Email already exists", Err: fmt.Errorf("email already exists")})
			return false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return false
	}
	return true
}

func hashPasswordForSignup(c *gin.Context, plain string) (string, string, bool) {
	salt, err := util.GenerateSalt()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to generate password salt", Err: err})
		return "", "", false
	}
	hashedPassword, err := util.HashPasswordArgon2(plain, salt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return "", "", false
	}
	return hashedPassword, salt, true
}

func createUserOrRespond(c *gin.Context, db *gorm.DB, user *model.User) bool {
	if err := db.Create(user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create new user", Err: err})
		return false
	}
	return true
}

func fetchRoleByNameOrRespond(c *gin.Context, db *gorm.DB, name string) (model.Role, bool) {
	var role model.Role
	err := db.Where("name = ?", name).First(&role).Error
	if err == gorm.ErrRecordNotFound {
		util.CallServerError(c, util.APIErrorParams{Msg: "Default role missing; has the database been seeded?", Err: err})
		return model.Role{}, false
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return model.Role{}, false
	}
	return role, true
}
