package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
	"kapacity/api/internal/service"
)

type signupRequest struct {
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Industry           string `json:"industry"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phoneNumber"`
	Country            string `json:"country"`
	Gender             string `json:"gender"`
	Website            string `json:"website"`
	Password           string `json:"password"`
	Channel            string `json:"channel"`
}

func (r signupRequest) input(kind models.AccountKind) service.SignupInput {
	in := service.SignupInput{
		Kind:     kind,
		Password: r.Password,
		Channel:  models.Channel(r.Channel),
	}
	switch kind {
	case models.AccountKindIndividual:
		in.Individual = &models.IndividualForm{
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			PhoneNumber: r.PhoneNumber,
			Country:     r.Country,
			Gender:      r.Gender,
		}
	case models.AccountKindOrganization:
		in.Organization = &models.OrganizationForm{
			Name:               r.Name,
			RegistrationNumber: r.RegistrationNumber,
			Industry:           r.Industry,
			Email:              r.Email,
			PhoneNumber:        r.PhoneNumber,
			Country:            r.Country,
			Website:            r.Website,
		}
	}
	return in
}

type verifyRequest struct {
	OwnerReference string `json:"ownerReference"`
	Code           string `json:"code"`
}

type resendRequest struct {
	OwnerReference string `json:"ownerReference"`
	Channel        string `json:"channel"`
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
	Channel    string `json:"channel"`
}

func (h HandlerSet) BeginSignup(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	pending, err := h.svc.Signup.BeginSignup(c.Request.Context(), req.input(kind))
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "Verification code sent", pendingView(pending))
}

func (h HandlerSet) CompleteSignup(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.svc.Signup.CompleteSignup(c.Request.Context(), req.OwnerReference, kind, req.Code)
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Account verified", sessionView(session))
}

func (h HandlerSet) ResendCode(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req resendRequest
	if !bindJSON(c, &req) {
		return
	}

	pending, err := h.svc.Signup.ResendCode(c.Request.Context(), req.OwnerReference, kind, models.Channel(req.Channel))
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "Verification code sent", pendingView(pending))
}

func (h HandlerSet) RequestActivation(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req identifierRequest
	if !bindJSON(c, &req) {
		return
	}

	pending, err := h.svc.Signup.RequestActivation(c.Request.Context(), kind, req.Identifier, models.Channel(req.Channel))
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "Verification code sent", pendingView(pending))
}

func (h HandlerSet) CompleteActivation(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.svc.Signup.CompleteActivation(c.Request.Context(), req.OwnerReference, kind, req.Code)
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Account verified", sessionView(session))
}
