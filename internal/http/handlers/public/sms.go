package public

import (
	"strings"

	"github.com/crm-pay/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SendSmsCodeRequest 发送验证码请求
type SendSmsCodeRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

// VerifySmsCodeRequest 校验验证码请求
type VerifySmsCodeRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// SendSmsCode 发送短信验证码。
func (h *Handler) SendSmsCode(c *gin.Context) {
	var req SendSmsCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	err := h.SMSService.SendVerifyCode(c.Request.Context(), strings.TrimSpace(req.Phone), strings.TrimSpace(req.Purpose))
	if err != nil {
		respondWithMappedError(c, err, smsSendErrorRules, response.CodeInternal, "验证码发送失败")
		return
	}
	response.Success(c, gin.H{"sent": true})
}

// VerifySmsCode 校验短信验证码，校验成功即消费。
func (h *Handler) VerifySmsCode(c *gin.Context) {
	var req VerifySmsCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	err := h.SMSService.VerifyCode(c.Request.Context(), strings.TrimSpace(req.Phone), strings.TrimSpace(req.Purpose), strings.TrimSpace(req.Code))
	if err != nil {
		respondWithMappedError(c, err, smsVerifyErrorRules, response.CodeBadRequest, "验证码校验失败")
		return
	}
	response.Success(c, gin.H{"verified": true})
}
