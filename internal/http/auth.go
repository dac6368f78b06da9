package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/service"
)

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerReq true "Account"
// @Success 201 {object} sessionResp
// @Failure 400 {object} errorResp
// @Router /auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	sess, err := s.deps.Auth.Register(c, req.Name, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResp{Success: true, Token: sess.Token, User: sess.User})
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Success 200 {object} sessionResp
// @Failure 401 {object} errorResp
// @Router /auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	sess, err := s.deps.Auth.Login(c, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResp{Success: true, Token: sess.Token, User: sess.User})
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userResp
// @Failure 401 {object} errorResp
// @Router /auth/me [get]
func (s *Server) me(c *gin.Context) {
	u, err := s.deps.Auth.Me(c, identity(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userResp{Success: true, User: u})
}

// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body service.ProfileUpdate true "Fields to change"
// @Success 200 {object} userResp
// @Failure 400 {object} errorResp
// @Router /users/profile [put]
func (s *Server) updateProfile(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	u, err := s.deps.Auth.UpdateProfile(c, identity(c).ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userResp{Success: true, User: u})
}
