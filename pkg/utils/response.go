package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ResponseCode application-level response code
type ResponseCode int

// Response codes carried alongside the HTTP status
const (
	CodeSuccess       ResponseCode = 0
	CodeInvalidParam  ResponseCode = 40001
	CodeUnauthorized  ResponseCode = 40101
	CodeForbidden     ResponseCode = 40301
	CodeNotFound      ResponseCode = 40401
	CodeConflict      ResponseCode = 40901
	CodeUnprocessable ResponseCode = 42201
	CodeRateLimit     ResponseCode = 42901
	CodeInternalError ResponseCode = 50001
	CodeUnavailable   ResponseCode = 50301
)

// Response standard response envelope
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse writes a 200 success envelope
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// CreatedResponse writes a 201 success envelope
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse writes an error envelope with the given HTTP status
func ErrorResponse(c *gin.Context, httpStatus int, code ResponseCode, message string) {
	c.JSON(httpStatus, Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// PageResponse page payload
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// SuccessPageResponse writes a 200 success envelope with a page payload
func SuccessPageResponse(c *gin.Context, list interface{}, total int64, page, size int) {
	SuccessResponse(c, PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Size:  size,
	})
}
