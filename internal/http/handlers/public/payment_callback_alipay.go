package public

import (
	"net/http"

	"github.com/crm-pay/internal/constants"

	"github.com/gin-gonic/gin"
)

// HandleAlipayNotify 支付宝异步回调。
// 应答固定为 success/fail 文本，处理失败也要应答。
func (h *Handler) HandleAlipayNotify(c *gin.Context) {
	log := requestLog(c)
	if err := c.Request.ParseForm(); err != nil {
		log.Warnw("alipay_notify_form_parse_failed", "error", err)
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}
	form := c.Request.PostForm

	log.Infow("alipay_notify_received",
		"client_ip", c.ClientIP(),
		"out_trade_no", form.Get("out_trade_no"),
		"trade_status", form.Get("trade_status"),
	)

	if err := h.PaymentService.HandleAlipayNotify(form); err != nil {
		log.Warnw("alipay_notify_handle_failed",
			"out_trade_no", form.Get("out_trade_no"),
			"error", err,
		)
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}
	c.String(http.StatusOK, constants.AlipayCallbackSuccess)
}
