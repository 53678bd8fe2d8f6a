package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform wire shape shared by every JSON response. Success
// records embed it with Error=false; error responses are a bare Envelope with
// Error=true.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Success builds the envelope half of a success record.
func Success(message string) Envelope {
	return Envelope{Error: false, Message: message}
}

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"currentPage"`
	TotalPage   int   `json:"totalPage"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"hasNextPage"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Envelope
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response with a typed success record.
func OK(c *gin.Context, record interface{}) {
	c.JSON(http.StatusOK, record)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Envelope:   Success(""),
		Data:       data,
		Pagination: pagination,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	abort(c, http.StatusUnauthorized, "Invalid auth token.")
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "This request requires administrator privileges."
	}
	abort(c, http.StatusForbidden, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Not found."
	}
	abort(c, http.StatusNotFound, message)
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	abort(c, http.StatusConflict, message)
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, "Method not allowed.")
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, message string) {
	c.Header("Retry-After", "1")
	abort(c, http.StatusTooManyRequests, message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	abort(c, http.StatusInternalServerError, err.Error())
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Error: true, Message: message})
}
