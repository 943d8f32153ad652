package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	AccessDenied           = "ACCESS_DENIED"
	NoData                 = "NO_DATA"
)

type CreateRegistrationRequest struct {
	Name        string `json:"name" form:"name" validate:"required,notblank,max=255"`
	Email       string `json:"email" form:"email" validate:"required,notblank,max=255"`
	Phone       string `json:"phone" form:"phone" validate:"required,notblank,max=64"`
	Institution string `json:"institution" form:"institution" validate:"required,notblank,max=255"`
	Course      string `json:"course" form:"course" validate:"required,notblank,max=255"`
	Workshop    string `json:"workshop" form:"workshop" validate:"required,workshop"`
	Referrer    string `json:"referrer" form:"referrer" validate:"max=255"`
}

type RegistrationResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Workshop string `json:"workshop"`
	// QRPayload is the exact text embedded in QRCode.
	QRPayload string `json:"qr_payload"`
	// QRCode is the base64-encoded PNG.
	QRCode string `json:"qr_code"`
	Notice string `json:"notice,omitempty"`
}

type AdminRegistration struct {
	ID          int64   `json:"id"`
	Label       string  `json:"label"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Institution string  `json:"institution"`
	Course      string  `json:"course"`
	Workshop    string  `json:"workshop"`
	Referrer    *string `json:"referrer"`
}

type SummaryResponse struct {
	Total     int            `json:"total"`
	Workshops map[string]int `json:"workshops"`
	NoData    bool           `json:"no_data"`
}

type LoginRequest struct {
	Password string `json:"password" form:"password"`
}

type ExportResponse struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// NotificationMessage is the queued form of a confirmation email.
type NotificationMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Workshop string `json:"workshop"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldIncorrectError(c *ginext.Context, desc string) {
	BadResponseError(c, FieldIncorrect, desc)
}

func EmailAlreadyRegisteredError(c *ginext.Context) {
	BadResponseError(c, EmailAlreadyRegistered, "Email already registered!")
}

func AccessDeniedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, AccessDenied, "Access denied")
}

func NoDataError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, NoData, "No registrations yet.")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
