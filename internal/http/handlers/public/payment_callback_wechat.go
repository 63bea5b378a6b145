package public

import (
	"io"
	"net/http"

	"github.com/crm-pay/internal/payment/wechat"

	"github.com/gin-gonic/gin"
)

const callbackBodyLimit = 1 << 20

// HandleWechatNotify 微信支付异步回调。
// 应答必须是微信网关约定的 XML 报文，处理失败也要应答，否则网关会持续重发。
func (h *Handler) HandleWechatNotify(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, callbackBodyLimit))
	if err != nil {
		log.Warnw("wechat_notify_body_read_failed", "error", err)
		c.String(http.StatusOK, wechat.AckFail("invalid body"))
		return
	}

	log.Infow("wechat_notify_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
	)

	if err := h.PaymentService.HandleWechatNotify(body); err != nil {
		log.Warnw("wechat_notify_handle_failed", "error", err)
		c.String(http.StatusOK, wechat.AckFail("FAIL"))
		return
	}
	c.String(http.StatusOK, wechat.AckSuccess())
}
