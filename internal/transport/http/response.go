package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`           // 业务状态码
	Message string      `json:"message"`        // 面向用户的提示信息
	Data    interface{} `json:"data,omitempty"` // 数据载荷
}

// ResultsResponse 带结果列表的响应，results 字段始终输出（空列表为 []）
type ResultsResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Results interface{} `json:"results"`
}

// CodeSuccess 成功时的业务状态码，错误响应直接使用 HTTP 状态码
const CodeSuccess = 200

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "OK",
		Data:    data,
	})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: msg,
		Data:    data,
	})
}

// SuccessResults 成功响应，结果放在 results 字段
func SuccessResults(c *gin.Context, msg string, results interface{}) {
	c.JSON(http.StatusOK, ResultsResponse{
		Code:    CodeSuccess,
		Message: msg,
		Results: results,
	})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, msg)
}

// Error 通用错误响应（根据HTTP状态码自动选择）
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    httpCode,
		Message: msg,
	})
}
